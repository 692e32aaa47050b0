package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/yourorg/checkout-orchestrator/internal/adapter"
	"github.com/yourorg/checkout-orchestrator/internal/adapter/paymentrequest"
	"github.com/yourorg/checkout-orchestrator/internal/adapter/paypal"
	stripeadapter "github.com/yourorg/checkout-orchestrator/internal/adapter/stripe"
	"github.com/yourorg/checkout-orchestrator/internal/adapter/wallee"
	"github.com/yourorg/checkout-orchestrator/internal/backend"
	"github.com/yourorg/checkout-orchestrator/internal/catalog"
	"github.com/yourorg/checkout-orchestrator/internal/config"
	checkoutcontext "github.com/yourorg/checkout-orchestrator/internal/context"
	"github.com/yourorg/checkout-orchestrator/internal/logger"
	"github.com/yourorg/checkout-orchestrator/internal/orchestrator"
	"github.com/yourorg/checkout-orchestrator/internal/policy"
	"github.com/yourorg/checkout-orchestrator/internal/poller"
	"github.com/yourorg/checkout-orchestrator/internal/processor"
	"github.com/yourorg/checkout-orchestrator/internal/reporting"
	"github.com/yourorg/checkout-orchestrator/internal/router"
)

const journalLimit = 1000

func coreModule(configPath string) fx.Option {
	return fx.Options(
		fx.Provide(func() (config.Config, error) { return config.Load(configPath) }),
		checkoutModule,
	)
}

// checkoutModule builds the orchestrator from a config.Config supplied elsewhere.
var checkoutModule = fx.Options(
	fx.Provide(
		newLogger,
		newTracerProvider,
		newRedisClient,
		newBackendPool,
		newBackendResolver,
		newContextBuilder,
		adapter.NewInteractions,
		wallee.NewSignalLauncher,
		paymentrequest.NewCapabilityProber,
		newConfirmer,
		newRegistry,
		newProcessor,
		newRouter,
		catalog.NewBuilder,
		newPolicyEnforcer,
		newPoller,
		func() *reporting.Journal { return reporting.NewJournal(journalLimit) },
		reporting.NewRetrospectiveReporter,
		newOrchestrator,
	),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

var routerModule = fx.Provide(newServer, newEngine)

var httpModule = fx.Options(
	fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: l.Named("fx")}
	}),
	routerModule,
	fx.Invoke(startHTTPServer),
)

func newLogger(cfg config.Config) *zap.Logger {
	return logger.New("checkout", cfg.Log.Development)
}

func newTracerProvider(lc fx.Lifecycle, cfg config.Config) (*sdktrace.TracerProvider, error) {
	var opts []sdktrace.TracerProviderOption
	if cfg.Tracing.Enabled {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	lc.Append(fx.Hook{OnStop: tp.Shutdown})
	return tp, nil
}

// newRedisClient returns nil when no address is configured, which disables the payee cache.
func newRedisClient(lc fx.Lifecycle, cfg config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

func newBackendPool(cfg config.Config, rdb *redis.Client, l *zap.Logger) *backend.Pool {
	return backend.NewPool(rdb, cfg.Redis.TTL, l,
		backend.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout}))
}

func newBackendResolver(pool *backend.Pool) orchestrator.BackendResolver {
	return func(sc checkoutcontext.SessionContext) orchestrator.Backend {
		return pool.For(sc.BaseURL)
	}
}

func newContextBuilder(cfg config.Config) *checkoutcontext.Builder {
	repo := checkoutcontext.NewInMemoryStageRepository()
	repo.AddStage(checkoutcontext.StageDev, cfg.Backend.DevURL)
	repo.AddStage(checkoutcontext.StageLive, cfg.Backend.LiveURL)
	lang, _ := checkoutcontext.ParseLanguage(cfg.Checkout.DefaultLanguage)
	return checkoutcontext.NewBuilder(repo, lang)
}

func newConfirmer(cfg config.Config, l *zap.Logger) *stripeadapter.Confirmer {
	var opts []stripeadapter.Option
	if cfg.Stripe.APIURL != "" {
		opts = append(opts, stripeadapter.WithAPIURL(cfg.Stripe.APIURL))
	}
	return stripeadapter.NewConfirmer(l, opts...)
}

func newRegistry(
	cfg config.Config,
	interactions *adapter.Interactions,
	launcher *wallee.SignalLauncher,
	prober *paymentrequest.CapabilityProber,
	confirmer *stripeadapter.Confirmer,
	l *zap.Logger,
) *adapter.Registry {
	walletCfg := paypal.Config{
		SDKURL:       cfg.Wallet.SDKURL,
		LoadAttempts: cfg.Wallet.LoadAttempts,
		LoadInterval: cfg.Wallet.LoadInterval,
	}
	return adapter.NewRegistry(
		stripeadapter.NewStripeAdapter(confirmer, l),
		paypal.NewPayPalAdapter(walletCfg, interactions, &http.Client{Timeout: cfg.Backend.Timeout}, l),
		wallee.NewWalleeAdapter(launcher, cfg.Redirect.ProbeInterval, l),
		paymentrequest.NewPaymentRequestAdapter(prober, confirmer, interactions, l),
	)
}

func newProcessor(reg *adapter.Registry, l *zap.Logger) *processor.Processor {
	return processor.NewProcessor(reg, l)
}

func newRouter(p *processor.Processor, l *zap.Logger) *router.Router {
	return router.NewRouter(p, l)
}

func newPolicyEnforcer(cfg config.Config) (*policy.PaymentPolicyEnforcer, error) {
	rules := policy.DefaultRules()
	if len(cfg.Policy.RenewalRules) > 0 {
		rules = make([]policy.PolicyRule, 0, len(cfg.Policy.RenewalRules))
		for _, r := range cfg.Policy.RenewalRules {
			rules = append(rules, policy.PolicyRule{
				ID:         r.ID,
				Expression: r.Expression,
				Priority:   r.Priority,
				Decision:   policy.PolicyDecision{OfferRenewal: true},
			})
		}
	}
	return policy.NewPaymentPolicyEnforcer(rules)
}

func newPoller(cfg config.Config, l *zap.Logger) *poller.Poller {
	return poller.New(cfg.Checkout.PollInterval, l)
}

type orchestratorParams struct {
	fx.In

	Lifecycle    fx.Lifecycle
	Config       config.Config
	Contexts     *checkoutcontext.Builder
	Backends     orchestrator.BackendResolver
	Router       *router.Router
	Catalog      *catalog.Builder
	Policy       *policy.PaymentPolicyEnforcer
	Poller       *poller.Poller
	Journal      *reporting.Journal
	Interactions *adapter.Interactions
	Logger       *zap.Logger
}

func newOrchestrator(p orchestratorParams) *orchestrator.Orchestrator {
	o := orchestrator.NewOrchestrator(
		p.Contexts, p.Backends, p.Router, p.Catalog, p.Policy,
		p.Poller, p.Journal, p.Interactions,
		orchestrator.Config{
			SettleDelay:   p.Config.Checkout.SettleDelay,
			SelectionLock: p.Config.Checkout.SelectionLock,
		},
		p.Logger,
	)
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			o.Shutdown()
			return nil
		},
	})
	return o
}

func newEngine(srv *Server, cfg config.Config) *gin.Engine {
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	return setupRouter(srv)
}

func startHTTPServer(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, l *zap.Logger) {
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: engine,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", httpServer.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", httpServer.Addr, err)
			}
			go func() {
				if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					l.Error("http server stopped", zap.Error(err))
				}
			}()
			l.Info("http server listening", zap.String("addr", httpServer.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return httpServer.Shutdown(ctx)
		},
	})
}
