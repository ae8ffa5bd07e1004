// Package config carrega a configuração do bridge a partir de um arquivo
// YAML, com override por variáveis de ambiente.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config agrega todas as opções reconhecidas.
type Config struct {
	Discord DiscordConfig `yaml:"discord"`
	Redis   RedisConfig   `yaml:"redis"`
	Limiter LimiterConfig `yaml:"limiter"`
	Sync    SyncConfig    `yaml:"sync"`
}

// DiscordConfig cobre credenciais da aplicação e o comportamento do cliente.
type DiscordConfig struct {
	APIBaseURL        string `yaml:"api_base_url"`
	OAuthAuthorizeURL string `yaml:"oauth_authorize_url"`
	OAuthTokenURL     string `yaml:"oauth_token_url"`

	// Todos obrigatórios para ativação de contas.
	AppID       string `yaml:"app_id"`
	AppSecret   string `yaml:"app_secret"`
	BotToken    string `yaml:"bot_token"`
	CallbackURL string `yaml:"callback_url"`
	GuildID     uint64 `yaml:"guild_id"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	GuildNameCacheTTL time.Duration `yaml:"guild_name_cache_ttl"`
	RolesCacheTTL     time.Duration `yaml:"roles_cache_ttl"`

	// DisableRoleCreation serve para sobreviver ao limite de 48h de criação
	// de roles sem derrubar o resto do sync.
	DisableRoleCreation bool `yaml:"disable_role_creation"`
}

// RedisConfig aponta o KV compartilhado dos contadores do rate limit.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LimiterConfig parametriza o limite global compartilhado.
type LimiterConfig struct {
	Burst         int64         `yaml:"burst"`
	Window        time.Duration `yaml:"window"`
	Contingency   time.Duration `yaml:"contingency"`
	WaitThreshold time.Duration `yaml:"wait_threshold"`

	StatsEnabled bool          `yaml:"stats_enabled"`
	StatsPrefix  string        `yaml:"stats_prefix"`
	StatsTTL     time.Duration `yaml:"stats_ttl"`
}

// SyncConfig controla as tarefas de fundo e a varredura periódica.
type SyncConfig struct {
	MaxTaskRetries   int           `yaml:"max_task_retries"`
	RetryPause       time.Duration `yaml:"retry_pause"`
	NameSyncEnabled  bool          `yaml:"name_sync_enabled"`
	SweepEvery       time.Duration `yaml:"sweep_every"`
	SweepRPS         float64       `yaml:"sweep_rps"`
	SweepConcurrency int           `yaml:"sweep_concurrency"`
}

// Load lê o arquivo (se existir), aplica overrides de ambiente, preenche
// defaults e valida os campos obrigatórios.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DISCORD_API_BASE_URL"); v != "" {
		c.Discord.APIBaseURL = v
	}
	if v := os.Getenv("DISCORD_APP_ID"); v != "" {
		c.Discord.AppID = v
	}
	if v := os.Getenv("DISCORD_APP_SECRET"); v != "" {
		c.Discord.AppSecret = v
	}
	if v := os.Getenv("DISCORD_BOT_TOKEN"); v != "" {
		c.Discord.BotToken = v
	}
	if v := os.Getenv("DISCORD_CALLBACK_URL"); v != "" {
		c.Discord.CallbackURL = v
	}
	if v := os.Getenv("DISCORD_GUILD_ID"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.Discord.GuildID = id
		}
	}
	if v := os.Getenv("DISCORD_DISABLE_ROLE_CREATION"); v != "" {
		c.Discord.DisableRoleCreation = v == "true"
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("LIMITER_BURST"); v != "" {
		if b, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Limiter.Burst = b
		}
	}
	if v := os.Getenv("LIMITER_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Limiter.Window = d
		}
	}
	if v := os.Getenv("SYNC_NAME_SYNC_ENABLED"); v != "" {
		c.Sync.NameSyncEnabled = v == "true"
	}
	if v := os.Getenv("SYNC_SWEEP_EVERY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Sync.SweepEvery = d
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Discord.APIBaseURL == "" {
		c.Discord.APIBaseURL = "https://discord.com/api/"
	}
	if c.Discord.OAuthAuthorizeURL == "" {
		c.Discord.OAuthAuthorizeURL = "https://discord.com/api/oauth2/authorize"
	}
	if c.Discord.OAuthTokenURL == "" {
		c.Discord.OAuthTokenURL = "https://discord.com/api/oauth2/token"
	}
	if c.Discord.ConnectTimeout <= 0 {
		c.Discord.ConnectTimeout = 5 * time.Second
	}
	if c.Discord.RequestTimeout <= 0 {
		c.Discord.RequestTimeout = 30 * time.Second
	}
	if c.Discord.GuildNameCacheTTL <= 0 {
		c.Discord.GuildNameCacheTTL = 24 * time.Hour
	}
	if c.Discord.RolesCacheTTL <= 0 {
		c.Discord.RolesCacheTTL = 1 * time.Hour
	}
	if c.Limiter.Burst <= 0 {
		c.Limiter.Burst = 5
	}
	if c.Limiter.Window <= 0 {
		c.Limiter.Window = 5 * time.Second
	}
	if c.Limiter.Contingency <= 0 {
		c.Limiter.Contingency = 500 * time.Millisecond
	}
	if c.Limiter.WaitThreshold <= 0 {
		c.Limiter.WaitThreshold = 250 * time.Millisecond
	}
	if c.Limiter.StatsPrefix == "" {
		c.Limiter.StatsPrefix = "discord:stats"
	}
	if c.Limiter.StatsTTL <= 0 {
		c.Limiter.StatsTTL = 24 * time.Hour
	}
	if c.Sync.MaxTaskRetries <= 0 {
		c.Sync.MaxTaskRetries = 3
	}
	if c.Sync.RetryPause <= 0 {
		c.Sync.RetryPause = 60 * time.Second
	}
	if c.Sync.SweepEvery <= 0 {
		c.Sync.SweepEvery = 24 * time.Hour
	}
	if c.Sync.SweepRPS <= 0 {
		c.Sync.SweepRPS = 1
	}
	if c.Sync.SweepConcurrency <= 0 {
		c.Sync.SweepConcurrency = 4
	}
}

// Validate confere os campos obrigatórios para ativação.
func (c *Config) Validate() error {
	if c.Discord.AppID == "" {
		return errors.New("discord.app_id is required")
	}
	if c.Discord.AppSecret == "" {
		return errors.New("discord.app_secret is required")
	}
	if c.Discord.BotToken == "" {
		return errors.New("discord.bot_token is required")
	}
	if c.Discord.CallbackURL == "" {
		return errors.New("discord.callback_url is required")
	}
	if c.Discord.GuildID == 0 {
		return errors.New("discord.guild_id is required")
	}
	return nil
}
