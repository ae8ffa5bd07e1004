package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"discord-bridge/bridge/discord/application"
	"discord-bridge/bridge/discord/domain"
)

const (
	DefaultBaseURL   = "https://discord.com/api/"
	DefaultUserAgent = "DiscordBot (discord-bridge, 1.0)"

	DefaultConnectTimeout    = 5 * time.Second
	DefaultRequestTimeout    = 30 * time.Second
	DefaultRolesCacheTTL     = 1 * time.Hour
	DefaultGuildNameCacheTTL = 24 * time.Hour

	// fallback quando o corpo do 429 não traz retry_after
	defaultRetryAfter = 5000 * time.Millisecond
)

// Options parametriza o cliente. Campos zero usam os defaults acima.
type Options struct {
	BaseURL   string
	UserAgent string
	BotToken  string

	ConnectTimeout    time.Duration
	RequestTimeout    time.Duration
	RolesCacheTTL     time.Duration
	GuildNameCacheTTL time.Duration

	// DisableRoleCreation faz CreateGuildRole virar no-op (devolve nil).
	// Usado para sobreviver ao limite próprio de criação de roles, que tem
	// janela de 48h e não se recupera esperando segundos.
	DisableRoleCreation bool

	Gate *application.Gate
	Log  *slog.Logger

	// HTTPClient substitui o transporte (testes). nil monta um com os
	// timeouts de conexão/requisição configurados.
	HTTPClient *http.Client
}

// Client é a fachada stateless-por-chamada sobre a API remota. Todo estado
// interno é cache (roles e nome da guild, com TTL) protegido por mutex; o
// restante pode ser usado por qualquer número de goroutines.
type Client struct {
	baseURL   string
	userAgent string
	botToken  string

	disableRoleCreation bool

	gate *application.Gate
	http *http.Client
	log  *slog.Logger

	rolesTTL time.Duration
	nameTTL  time.Duration

	mu         sync.Mutex
	rolesCache map[uint64]rolesEntry
	nameCache  map[uint64]nameEntry
}

type rolesEntry struct {
	set       domain.RoleSet
	expiresAt time.Time
}

type nameEntry struct {
	name      string
	expiresAt time.Time
}

func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(opts.BaseURL, "/") {
		opts.BaseURL += "/"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.RolesCacheTTL <= 0 {
		opts.RolesCacheTTL = DefaultRolesCacheTTL
	}
	if opts.GuildNameCacheTTL <= 0 {
		opts.GuildNameCacheTTL = DefaultGuildNameCacheTTL
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.RequestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: opts.ConnectTimeout}).DialContext,
			},
		}
	}

	return &Client{
		baseURL:             opts.BaseURL,
		userAgent:           opts.UserAgent,
		botToken:            opts.BotToken,
		disableRoleCreation: opts.DisableRoleCreation,
		gate:                opts.Gate,
		http:                httpClient,
		log:                 opts.Log,
		rolesTTL:            opts.RolesCacheTTL,
		nameTTL:             opts.GuildNameCacheTTL,
		rolesCache:          make(map[uint64]rolesEntry),
		nameCache:           make(map[uint64]nameEntry),
	}
}

// reqSpec descreve uma requisição a ser emitida através do gate.
type reqSpec struct {
	op     string
	method string
	route  string // relativa ao BaseURL, sem "/" inicial
	body   any

	// bearer não vazio troca a autenticação de Bot para Bearer.
	bearer string
	// unlimited pula o contador compartilhado (o backoff global ainda vale).
	unlimited bool
}

type response struct {
	status int
	body   []byte
}

func ok2xx(status int) bool { return status >= 200 && status < 300 }

// do emite a requisição: passa pelo gate, monta headers, e traduz 429 em
// TooManyRequests já estendendo a janela de backoff compartilhada. Qualquer
// outro status volta cru; quem chama decide se levanta erro.
func (c *Client) do(ctx context.Context, spec reqSpec) (*response, error) {
	if c.gate != nil {
		if err := c.gate.Acquire(ctx, spec.op, spec.unlimited); err != nil {
			return nil, err
		}
	}

	var rd io.Reader
	if spec.body != nil {
		payload, err := json.Marshal(spec.body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, spec.method, c.baseURL+spec.route, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if spec.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if spec.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+spec.bearer)
	} else {
		req.Header.Set("Authorization", "Bot "+c.botToken)
	}

	res, err := c.http.Do(req)
	if err != nil {
		// erros de transporte passam intocados; a política de retry é do
		// orquestrador, não daqui
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode == http.StatusTooManyRequests {
		retry := parseRetryAfter(body) + c.contingency()
		if c.gate != nil {
			if err := c.gate.SetBackoff(ctx, retry); err != nil {
				c.log.Warn("failed to extend shared backoff window", "err", err)
			}
		}
		c.log.Warn("remote returned 429", "op", spec.op, "retry_after", retry)
		return nil, &domain.TooManyRequests{BackoffError: domain.BackoffError{After: retry}}
	}

	return &response{status: res.StatusCode, body: body}, nil
}

func (c *Client) contingency() time.Duration {
	if c.gate != nil {
		return c.gate.Limit.Normalized().Contingency
	}
	return domain.DefaultContingency
}

func unmarshalBody(res *response, v any) error {
	return json.Unmarshal(res.body, v)
}

// raiseFor converte não-2xx em *domain.HTTPError.
func raiseFor(res *response) error {
	if ok2xx(res.status) {
		return nil
	}
	return newHTTPError(res)
}

func newHTTPError(res *response) *domain.HTTPError {
	var p struct {
		Code int `json:"code"`
	}
	_ = json.Unmarshal(res.body, &p)
	return &domain.HTTPError{Status: res.status, Code: p.Code, Body: string(res.body)}
}

func parseRetryAfter(body []byte) time.Duration {
	var p struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &p); err == nil && p.RetryAfter > 0 {
		return time.Duration(p.RetryAfter * float64(time.Second))
	}
	return defaultRetryAfter
}

// memberOutcome traduz a resposta de uma operação de membro na tricotomia
// sucesso / membro não existe / falha.
func memberOutcome(res *response) (domain.MemberOutcome, error) {
	if ok2xx(res.status) {
		return domain.OutcomeOK, nil
	}
	he := newHTTPError(res)
	if he.UnknownMember() {
		return domain.OutcomeNotAMember, nil
	}
	return domain.OutcomeFailed, he
}
