package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	apphandler "docdesk/internal/application/handler"
	appmetrics "docdesk/internal/application/metrics"
	appservice "docdesk/internal/application/service"
	appmemory "docdesk/internal/application/store/memory"
	apppostgres "docdesk/internal/application/store/postgres"
	attachmentmemory "docdesk/internal/attachment/memory"
	attachments3 "docdesk/internal/attachment/s3"
	dochandler "docdesk/internal/document/handler"
	docmetrics "docdesk/internal/document/metrics"
	docservice "docdesk/internal/document/service"
	doccache "docdesk/internal/document/store/cache"
	docmemory "docdesk/internal/document/store/memory"
	docpostgres "docdesk/internal/document/store/postgres"
	jwttoken "docdesk/internal/jwt_token"
	"docdesk/internal/notify"
	"docdesk/internal/platform/config"
	"docdesk/internal/platform/httpserver"
	"docdesk/internal/platform/kafka"
	"docdesk/internal/platform/logger"
	"docdesk/internal/platform/metrics"
	platformmw "docdesk/internal/platform/middleware"
	"docdesk/internal/platform/postgres"
	"docdesk/internal/platform/redis"
	"docdesk/pkg/platform/audit/publisher"
	auditmemory "docdesk/pkg/platform/audit/store/memory"
	"docdesk/pkg/platform/httputil"
	"docdesk/pkg/platform/middleware/auth"
	"docdesk/pkg/platform/middleware/metadata"
	"docdesk/pkg/platform/middleware/request"
	"docdesk/pkg/platform/middleware/requesttime"
)

const (
	auditBufferSize    = 1024
	topicPartitions    = 3
	topicReplication   = 1
	healthCheckTimeout = 2 * time.Second
)

// infra holds the optional backing services. Nil fields select in-process fallbacks.
type infra struct {
	db       *sql.DB
	redis    *redis.Client
	producer *kafka.Producer
	s3       *attachments3.Store
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	log.Info("starting docdesk", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("docdesk exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	deps, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close()

	reg := metrics.NewRegistry()
	auditPublisher := publisher.NewPublisher(auditmemory.NewInMemoryStore(),
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithLogger(log),
	)
	defer auditPublisher.Close()

	documents := documentStore(deps, cfg, log)
	docs := docservice.New(documents,
		docservice.WithLogger(log),
		docservice.WithAuditPublisher(auditPublisher),
		docservice.WithMetrics(docmetrics.New(reg)),
	)

	notifier, err := newNotifier(ctx, deps, cfg, log)
	if err != nil {
		return err
	}
	apps := appservice.New(applicationStore(deps), documents, attachmentStore(deps),
		appservice.WithLogger(log),
		appservice.WithAuditPublisher(auditPublisher),
		appservice.WithAuditTrail(auditPublisher),
		appservice.WithNotifier(notifier),
		appservice.WithMetrics(appmetrics.New(reg)),
	)

	tokens := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, jwttoken.WithLeeway(cfg.Server.JWTLeeway))
	router := newRouter(log, reg, deps, auth.RequireAuth(jwttoken.NewJWTServiceAdapter(tokens), log),
		dochandler.New(docs, log),
		apphandler.New(apps, log),
	)

	srv := httpserver.New(cfg.Server.Addr, router)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout, log)
	})
	return g.Wait()
}

type registrar interface {
	Register(r chi.Router)
}

func newRouter(log *slog.Logger, reg *prometheus.Registry, deps *infra, requireAuth func(http.Handler) http.Handler, handlers ...registrar) http.Handler {
	httpMetrics := platformmw.NewHTTPMetrics(reg)

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Recover(log))
	r.Use(request.AccessLog(log))
	r.Use(httpMetrics.Instrument)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		checks := deps.health(ctx)
		status := http.StatusOK
		for _, v := range checks {
			if v != "ok" {
				status = http.StatusServiceUnavailable
			}
		}
		httputil.WriteJSON(w, status, checks)
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(reg))

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		for _, h := range handlers {
			h.Register(r)
		}
	})
	return r
}

// connect dials every configured backing service. Unconfigured ones stay nil.
func connect(ctx context.Context, cfg *config.Config, log *slog.Logger) (*infra, error) {
	deps := &infra{}
	var err error

	if cfg.Database.URL != "" {
		if deps.db, err = postgres.Open(ctx, cfg.Database); err != nil {
			return nil, err
		}
		if err = postgres.Migrate(deps.db, log); err != nil {
			deps.close()
			return nil, err
		}
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	if deps.redis, err = redis.New(ctx, cfg.Redis); err != nil {
		deps.close()
		return nil, err
	}

	if len(cfg.Kafka.Brokers) > 0 {
		if deps.producer, err = kafka.NewProducer(ctx, cfg.Kafka, log); err != nil {
			deps.close()
			return nil, err
		}
	}

	if cfg.S3.Endpoint != "" {
		if deps.s3, err = attachments3.New(ctx, cfg.S3); err != nil {
			deps.close()
			return nil, err
		}
	} else {
		log.Warn("S3_ENDPOINT not set, attachments are kept in memory")
	}
	return deps, nil
}

func (d *infra) close() {
	if d.producer != nil {
		d.producer.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
}

func (d *infra) health(ctx context.Context) map[string]string {
	checks := map[string]string{"http": "ok"}
	record := func(name string, err error) {
		if err != nil {
			checks[name] = err.Error()
			return
		}
		checks[name] = "ok"
	}
	if d.db != nil {
		record("postgres", d.db.PingContext(ctx))
	}
	if d.redis != nil {
		record("redis", d.redis.Health(ctx))
	}
	if d.producer != nil {
		record("kafka", d.producer.Health(ctx))
	}
	return checks
}

// documentStore picks postgres or memory and puts the redis cache in front when configured.
func documentStore(d *infra, cfg *config.Config, log *slog.Logger) doccache.Store {
	var store doccache.Store = docmemory.New()
	if d.db != nil {
		store = docpostgres.New(d.db)
	}
	if d.redis == nil {
		return store
	}
	return doccache.New(store, d.redis.Client, cfg.DocumentCacheTTL, doccache.WithLogger(log))
}

func applicationStore(d *infra) appservice.Store {
	if d.db != nil {
		return apppostgres.New(d.db)
	}
	return appmemory.New()
}

func attachmentStore(d *infra) appservice.AttachmentStore {
	if d.s3 != nil {
		return d.s3
	}
	return attachmentmemory.New()
}

func newNotifier(ctx context.Context, d *infra, cfg *config.Config, log *slog.Logger) (appservice.Notifier, error) {
	if d.producer == nil {
		return notify.NewLogPublisher(log), nil
	}
	if err := d.producer.EnsureTopic(ctx, cfg.Kafka.Topic, topicPartitions, topicReplication); err != nil {
		return nil, fmt.Errorf("ensure notification topic: %w", err)
	}
	return notify.NewKafkaPublisher(d.producer, cfg.Kafka.Topic), nil
}
