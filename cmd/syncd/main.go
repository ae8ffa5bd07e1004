package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"discord-bridge/bridge/discord"
	"discord-bridge/bridge/discord/application"
	"discord-bridge/bridge/discord/domain"
	"discord-bridge/bridge/discord/infra"
	"discord-bridge/config"
)

func main() {
	cfgPath := getenvDefault("CONFIG_FILE", "config.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	membersPath := getenvDefault("MEMBERS_FILE", "members.yaml")
	roster, err := loadRoster(membersPath)
	if err != nil {
		log.Fatalf("members file error: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	_, err = rdb.Ping(pingCtx).Result()
	cancel()
	if err != nil {
		log.Fatalf("redis ping error: %v", err)
	}

	var stats domain.StatsStore
	if cfg.Limiter.StatsEnabled {
		stats = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.Limiter.StatsPrefix),
			infra.WithStatsTTL(cfg.Limiter.StatsTTL),
		)
	}

	gate := &application.Gate{
		Store: infra.NewRedisCounterStore(rdb),
		Stats: stats,
		Limit: domain.Limit{
			Burst:         cfg.Limiter.Burst,
			Window:        cfg.Limiter.Window,
			Contingency:   cfg.Limiter.Contingency,
			WaitThreshold: cfg.Limiter.WaitThreshold,
		},
		Log: logger,
	}

	client := discord.New(discord.Options{
		BaseURL:             cfg.Discord.APIBaseURL,
		BotToken:            cfg.Discord.BotToken,
		ConnectTimeout:      cfg.Discord.ConnectTimeout,
		RequestTimeout:      cfg.Discord.RequestTimeout,
		RolesCacheTTL:       cfg.Discord.RolesCacheTTL,
		GuildNameCacheTTL:   cfg.Discord.GuildNameCacheTTL,
		DisableRoleCreation: cfg.Discord.DisableRoleCreation,
		Gate:                gate,
		Log:                 logger,
	})

	reconciler := &application.Reconciler{
		API:      client,
		Reserved: roster,
		GuildID:  cfg.Discord.GuildID,
		Log:      logger,
	}

	syncer := &rosterSyncer{
		roster:     roster,
		reconciler: reconciler,
		client:     client,
		guildID:    cfg.Discord.GuildID,
		nickSync:   cfg.Sync.NameSyncEnabled,
	}

	sweeper := &discord.Sweeper{
		Users:  roster,
		Syncer: syncer,
		Pool:   infra.NewChanPool(cfg.Sync.SweepConcurrency),
		Pace:   rate.NewLimiter(rate.Limit(cfg.Sync.SweepRPS), 1),
		Every:  cfg.Sync.SweepEvery,
		Log:    logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("syncd: guild=%d users=%d sweep-every=%s burst=%d window=%s",
		cfg.Discord.GuildID, len(roster.Members), cfg.Sync.SweepEvery, cfg.Limiter.Burst, cfg.Limiter.Window)

	// uma varredura na partida, depois o laço periódico
	if err := sweeper.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("initial sweep failed", "err", err)
	}
	sweeper.Run(ctx)
}

// roster é o stand-in do registro local de associações: um arquivo YAML com
// os usuários, seus grupos e os nomes de role reservados.
type roster struct {
	Members []rosterMember `yaml:"members"`
	// ReservedNames protege roles contra o sync automático.
	ReservedNames []string `yaml:"reserved_names"`

	byID map[uint64]rosterMember
}

type rosterMember struct {
	UserID uint64   `yaml:"user_id"`
	Groups []string `yaml:"groups"`
	State  string   `yaml:"state"`
	Nick   string   `yaml:"nick"`
}

func loadRoster(path string) (*roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	r.byID = make(map[uint64]rosterMember, len(r.Members))
	for _, m := range r.Members {
		r.byID[m.UserID] = m
	}
	return &r, nil
}

func (r *roster) UserIDs(context.Context) ([]uint64, error) {
	out := make([]uint64, 0, len(r.Members))
	for _, m := range r.Members {
		out = append(out, m.UserID)
	}
	return out, nil
}

func (r *roster) ReservedRoleNames(context.Context) ([]string, error) {
	return r.ReservedNames, nil
}

type rosterSyncer struct {
	roster     *roster
	reconciler *application.Reconciler
	client     *discord.Client
	guildID    uint64
	nickSync   bool
}

func (s *rosterSyncer) SyncUser(ctx context.Context, userID uint64) error {
	m, ok := s.roster.byID[userID]
	if !ok {
		return nil
	}
	status, err := s.reconciler.Reconcile(ctx, userID, m.Groups, m.State)
	if err != nil {
		return err
	}
	if !s.nickSync || m.Nick == "" || status == domain.ChangeUnknown {
		return nil
	}
	nick := m.Nick
	_, err = s.client.ModifyGuildMember(ctx, s.guildID, userID, domain.MemberPatch{Nick: &nick})
	return err
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
