package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"discord-bridge/bridge/discord"
	"discord-bridge/bridge/discord/application"
	"discord-bridge/bridge/discord/domain"
	"discord-bridge/bridge/discord/infra"
	"discord-bridge/config"
)

// Exemplo: checagem pontual de reconciliação para um usuário, sem daemon.
//
//	rolecheck -user 1234 -groups staff,members -apply
func main() {
	var (
		cfgPath  = flag.String("config", "config.yaml", "caminho do arquivo de configuração")
		userID   = flag.Uint64("user", 0, "ID do usuário no Discord")
		groups   = flag.String("groups", "", "nomes de grupo separados por vírgula")
		state    = flag.String("state", "", "nome de estado opcional")
		reserved = flag.String("reserved", "", "nomes reservados separados por vírgula")
		apply    = flag.Bool("apply", false, "aplica a mudança em vez de só mostrar")
	)
	flag.Parse()

	if *userID == 0 {
		log.Fatal("-user is required")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// checagem pontual: contador em memória basta (o backoff compartilhado
	// não é coordenado com os workers aqui)
	gate := &application.Gate{
		Store: infra.NewMemoryCounterStore(),
		Limit: domain.DefaultLimit(),
		Log:   logger,
	}

	client := discord.New(discord.Options{
		BaseURL:             cfg.Discord.APIBaseURL,
		BotToken:            cfg.Discord.BotToken,
		DisableRoleCreation: !*apply || cfg.Discord.DisableRoleCreation,
		Gate:                gate,
		Log:                 logger,
	})

	reconciler := &application.Reconciler{
		API:      client,
		Reserved: staticReserved(splitList(*reserved)),
		GuildID:  cfg.Discord.GuildID,
		Log:      logger,
	}

	ctx := context.Background()
	if *apply {
		status, err := reconciler.Reconcile(ctx, *userID, splitList(*groups), *state)
		if err != nil {
			log.Fatalf("reconcile error: %v", err)
		}
		fmt.Printf("change: %s\n", status)
		return
	}

	roles, status, err := reconciler.CalculateRolesForUser(ctx, *userID, splitList(*groups), *state)
	if err != nil {
		log.Fatalf("calculate error: %v", err)
	}
	fmt.Printf("change: %s\n", status)
	for _, r := range roles.Roles() {
		fmt.Printf("  %d\t%s\tmanaged=%v\n", r.ID, r.Name, r.Managed)
	}
}

type staticReserved []string

func (s staticReserved) ReservedRoleNames(context.Context) ([]string, error) {
	return s, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
