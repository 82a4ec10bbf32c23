package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apihttp "homewatch/internal/api/http"
	"homewatch/internal/audit"
	"homewatch/internal/auth"
	"homewatch/internal/chains/infrastructure/yamlfile"
	"homewatch/internal/engine"
	filestore "homewatch/internal/engine/infrastructure/file"
	pgstore "homewatch/internal/engine/infrastructure/postgres"
	"homewatch/internal/escalation/contacts"
	"homewatch/internal/escalation/voip"
	healthhttp "homewatch/internal/health/interfaces/http"
	healthnotify "homewatch/internal/health/notify"
	"homewatch/internal/observability/metrics"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithDiagnosticsCapacity(cfg.DiagnosticsCapacity),
		engine.WithEventHistoryCapacity(cfg.EventHistoryCapacity),
	}

	persistence, db := openStateStore(ctx, cfg, logger)
	if db != nil {
		defer db.Close()
	}
	if fs, ok := persistence.(*filestore.Store); ok {
		stateLock, err := fs.Lock()
		if err != nil {
			logger.Fatalf("state file error: %v", err)
		}
		defer func() {
			if err := stateLock.Release(); err != nil {
				logger.Printf("state lock release error: %v", err)
			}
		}()
	}
	if persistence != nil {
		opts = append(opts, engine.WithPersistence(persistence))
	}

	ladders, err := contacts.NewFileSource(cfg.ContactsFile)
	if err != nil {
		logger.Fatalf("contacts source error: %v", err)
	}
	opts = append(opts, engine.WithLadderSource(ladders))

	gateway, err := voip.NewTwilioGateway(voip.Config{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		FromNumber: cfg.TwilioFromNumber,
		BaseURL:    cfg.TwilioBaseURL,
		Timeout:    cfg.CallTimeout,
	})
	switch {
	case err == nil:
		opts = append(opts, engine.WithCallGateway(gateway))
	case errors.Is(err, voip.ErrNotConfigured):
		logger.Printf("voice gateway not configured, call-outs disabled")
	default:
		logger.Fatalf("voice gateway error: %v", err)
	}

	eng := engine.New(opts...)

	if persistence != nil {
		if err := eng.Load(ctx); err != nil {
			logger.Fatalf("load state error: %v", err)
		}
		logger.Printf("state loaded: scenarios=%d devices=%d", eng.ScenarioCount(), eng.DeviceCount())
	}
	if cfg.ScenariosFile != "" && eng.ScenarioCount() == 0 {
		seed, err := yamlfile.LoadScenarios(cfg.ScenariosFile)
		if err != nil {
			logger.Fatalf("scenario seed error: %v", err)
		}
		for _, scenario := range seed {
			eng.AddScenario(scenario)
		}
		logger.Printf("scenario seed imported: %d", len(seed))
	}

	alertBroker := healthhttp.NewSSEBroker()
	eng.AddNotifier(alertBroker)
	if cfg.AlertWebhookURL != "" {
		channel, err := healthnotify.NewWebhookChannel(cfg.AlertWebhookURL)
		if err != nil {
			logger.Fatalf("alert webhook error: %v", err)
		}
		tpl, err := healthnotify.NewTemplate(cfg.AlertNotifyTemplate)
		if err != nil {
			logger.Fatalf("alert template error: %v", err)
		}
		notifier, err := healthnotify.NewNotifier(
			eng.AlertReader(),
			channel,
			tpl,
			healthnotify.WithEscalation(cfg.AlertEscalationAfter),
			healthnotify.WithCooldown(cfg.AlertNotifyCooldown),
			healthnotify.WithDedupeWindow(cfg.AlertNotifyDedupeWindow),
			healthnotify.WithRequestTimeout(cfg.AlertNotifyTimeout),
			healthnotify.WithQueueSize(cfg.AlertNotifyQueueSize),
			healthnotify.WithLogger(logger),
		)
		if err != nil {
			logger.Fatalf("alert notifier error: %v", err)
		}
		defer notifier.Close()
		eng.AddNotifier(notifier)
	}

	metrics.Init(metrics.Gauges{
		UnacknowledgedAlerts: eng.CountUnacknowledged,
		Scenarios:            eng.ScenarioCount,
		Devices:              eng.DeviceCount,
	}, logger)

	var auditLogger audit.Logger = audit.NewLogWriter(logger)
	if db != nil {
		repo := audit.NewRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Fatalf("audit schema error: %v", err)
		}
		auditLogger = repo
	}

	handler := apihttp.NewHandler(eng, logger,
		apihttp.WithAlertStream(healthhttp.NewStreamHandler(alertBroker)),
		apihttp.WithAuditLogger(auditLogger),
	)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(func(next http.Handler) http.Handler {
		return loggingMiddleware(next, logger)
	})
	if cfg.JWTSecret != "" {
		policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
		router.Use(auth.NewMiddleware([]byte(cfg.JWTSecret), policy).Wrap)
	} else {
		logger.Printf("AUTH_JWT_SECRET not set, api authentication disabled")
	}

	if cfg.IngestSecret != "" {
		ingestAuth := auth.NewIngestAuthMiddleware([]byte(cfg.IngestSecret), cfg.IngestMaxSkew)
		router.Method(http.MethodPost, "/ingest/events", ingestAuth.Wrap(handler.EventIngestHandler()))
	}
	handler.Routes(router)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if persistence != nil && cfg.SnapshotInterval > 0 {
		go runSnapshots(ctx, eng, cfg.SnapshotInterval, logger)
	}

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown error: %v", err)
	}
	if persistence != nil {
		if err := eng.Save(shutdownCtx); err != nil {
			logger.Printf("final snapshot error: %v", err)
		}
	}
}

// openStateStore returns nil persistence for the "none" backend. The database
// handle is only set for the postgres backend.
func openStateStore(ctx context.Context, cfg config, logger *log.Logger) (engine.Persistence, *sql.DB) {
	switch cfg.StateBackend {
	case "none":
		logger.Printf("state persistence disabled")
		return nil, nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			logger.Fatal("DATABASE_URL or PG_DSN is required for the postgres backend")
		}
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		if err := db.PingContext(ctx); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		store := pgstore.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Fatalf("db schema error: %v", err)
		}
		return store, db
	case "file", "":
		if err := os.MkdirAll(filepath.Dir(cfg.StateFile), 0o755); err != nil {
			logger.Fatalf("state dir error: %v", err)
		}
		store, err := filestore.NewStore(cfg.StateFile)
		if err != nil {
			logger.Fatalf("state file error: %v", err)
		}
		return store, nil
	default:
		logger.Fatalf("unknown STATE_BACKEND %q", cfg.StateBackend)
		return nil, nil
	}
}

func runSnapshots(ctx context.Context, eng *engine.Engine, interval time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := eng.Save(ctx); err != nil {
				logger.Printf("snapshot error: %v", err)
			}
		}
	}
}

type config struct {
	HTTPAddr                string
	StateBackend            string
	StateFile               string
	DatabaseURL             string
	ContactsFile            string
	ScenariosFile           string
	TwilioAccountSID        string
	TwilioAuthToken         string
	TwilioFromNumber        string
	TwilioBaseURL           string
	CallTimeout             time.Duration
	AlertWebhookURL         string
	AlertNotifyTemplate     string
	AlertEscalationAfter    time.Duration
	AlertNotifyCooldown     time.Duration
	AlertNotifyDedupeWindow time.Duration
	AlertNotifyTimeout      time.Duration
	AlertNotifyQueueSize    int
	JWTSecret               string
	IngestSecret            string
	IngestMaxSkew           time.Duration
	SnapshotInterval        time.Duration
	DiagnosticsCapacity     int
	EventHistoryCapacity    int
}

func loadConfig() config {
	return config{
		HTTPAddr:                getenvDefault("HTTP_ADDR", ":8080"),
		StateBackend:            strings.ToLower(getenvDefault("STATE_BACKEND", "file")),
		StateFile:               getenvDefault("STATE_FILE", "var/homewatch/state.json"),
		DatabaseURL:             getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		ContactsFile:            getenvDefault("CONTACTS_FILE", "var/homewatch/contacts.yaml"),
		ScenariosFile:           getenvDefault("SCENARIOS_FILE", ""),
		TwilioAccountSID:        getenvDefault("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:         getenvDefault("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:        getenvDefault("TWILIO_FROM_NUMBER", ""),
		TwilioBaseURL:           getenvDefault("TWILIO_BASE_URL", voip.DefaultBaseURL),
		CallTimeout:             getenvDuration("CALL_TIMEOUT", 10*time.Second),
		AlertWebhookURL:         getenvDefault("ALERT_WEBHOOK_URL", ""),
		AlertNotifyTemplate:     getenvDefault("ALERT_NOTIFY_TEMPLATE", ""),
		AlertEscalationAfter:    getenvDuration("ALERT_ESCALATION_AFTER", 0),
		AlertNotifyCooldown:     getenvDuration("ALERT_NOTIFY_COOLDOWN", 0),
		AlertNotifyDedupeWindow: getenvDuration("ALERT_NOTIFY_DEDUP_WINDOW", 0),
		AlertNotifyTimeout:      getenvDuration("ALERT_NOTIFY_TIMEOUT", 5*time.Second),
		AlertNotifyQueueSize:    getenvIntDefault("ALERT_NOTIFY_QUEUE_SIZE", 64),
		JWTSecret:               getenvDefault("AUTH_JWT_SECRET", ""),
		IngestSecret:            getenvDefault("INGEST_HMAC_SECRET", ""),
		IngestMaxSkew:           time.Duration(getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300)) * time.Second,
		SnapshotInterval:        getenvDuration("SNAPSHOT_INTERVAL", 30*time.Second),
		DiagnosticsCapacity:     getenvIntDefault("DIAGNOSTICS_CAPACITY", 1000),
		EventHistoryCapacity:    getenvIntDefault("EVENT_HISTORY_CAPACITY", 500),
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush keeps the alert stream working through the access log wrapper.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
