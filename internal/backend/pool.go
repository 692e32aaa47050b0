package backend

import (
	stdcontext "context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client is the backend as seen by a checkout session: the HTTP contract with
// payee lookups served through the cache when one is configured.
type Client struct {
	*HTTPClient
	payees *PayeeCache
}

// PayeeName shadows HTTPClient.PayeeName with the cached lookup.
func (c *Client) PayeeName(ctx stdcontext.Context, id string) (string, error) {
	if c.payees != nil {
		return c.payees.PayeeName(ctx, id)
	}
	return c.HTTPClient.PayeeName(ctx, id)
}

// PayeeCountry shadows HTTPClient.PayeeCountry with the cached lookup.
func (c *Client) PayeeCountry(ctx stdcontext.Context, id string) (string, error) {
	if c.payees != nil {
		return c.payees.PayeeCountry(ctx, id)
	}
	return c.HTTPClient.PayeeCountry(ctx, id)
}

// Pool hands out one Client per base URL.
type Pool struct {
	mu       sync.Mutex
	clients  map[string]*Client
	opts     []Option
	rdb      *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewPool creates a pool. rdb may be nil, which disables the payee cache.
func NewPool(rdb *redis.Client, cacheTTL time.Duration, l *zap.Logger, opts ...Option) *Pool {
	return &Pool{
		clients:  make(map[string]*Client),
		opts:     append([]Option{WithLogger(l)}, opts...),
		rdb:      rdb,
		cacheTTL: cacheTTL,
		logger:   l,
	}
}

// For returns the client for baseURL, creating it on first use.
func (p *Pool) For(baseURL string) *Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[baseURL]; ok {
		return c
	}
	h := NewHTTPClient(baseURL, p.opts...)
	c := &Client{HTTPClient: h}
	if p.rdb != nil {
		c.payees = NewPayeeCache(p.rdb, h, h.BaseURL(), p.cacheTTL, p.logger)
	}
	p.clients[baseURL] = c
	return c
}
