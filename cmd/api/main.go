package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"consentra/agreement"
	"consentra/audit"
	"consentra/auth"
	"consentra/db"
	"consentra/document"
	"consentra/email"
	"consentra/httpapi"
	"consentra/notification"
)

type config struct {
	addr           string
	databaseURL    string
	jwtSecret      string
	brevoAPIKey    string
	senderName     string
	senderEmail    string
	signingBaseURL string
}

func loadConfig() config {
	cfg := config{
		addr:           envOr("LISTEN_ADDR", ":8080"),
		databaseURL:    os.Getenv("DATABASE_URL"),
		jwtSecret:      os.Getenv("JWT_SECRET"),
		brevoAPIKey:    os.Getenv("BREVO_API_KEY"),
		senderName:     envOr("SENDER_NAME", "Digital Consent & Agreement Tracker"),
		senderEmail:    envOr("SENDER_EMAIL", "noreply@consentra.local"),
		signingBaseURL: envOr("SIGNING_BASE_URL", "http://localhost:5173"),
	}

	pflag.StringVar(&cfg.addr, "addr", cfg.addr, "HTTP listen address")
	pflag.StringVar(&cfg.signingBaseURL, "signing-base-url", cfg.signingBaseURL, "base URL embedded in signing links")
	pflag.Parse()

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := loadConfig()
	if cfg.databaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.jwtSecret == "" {
		logger.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.databaseURL)
	if err != nil {
		logger.Error("bootstrap database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var mail email.Dispatcher
	if cfg.brevoAPIKey != "" {
		mail = email.NewBrevoDispatcher(cfg.brevoAPIKey, cfg.senderName, cfg.senderEmail, logger)
	} else {
		logger.Warn("BREVO_API_KEY not set, emails will be logged instead of sent")
		mail = email.NewLogDispatcher(logger)
	}

	authSvc := auth.NewService(auth.NewRepository(pool), cfg.jwtSecret)
	auditRec := audit.NewRecorder(pool)
	notifier := notification.NewService(pool)
	agreements := agreement.NewService(
		agreement.NewRepository(pool),
		document.NewRenderer(),
		auditRec,
		notifier,
		mail,
		logger,
		cfg.signingBaseURL,
	)

	server := httpapi.NewServer(authSvc, agreements, notifier, auditRec, logger)

	httpSrv := &http.Server{
		Addr:              cfg.addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", cfg.addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server", "error", err)
		os.Exit(1)
	}
}
