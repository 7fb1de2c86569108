package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"os"
	"time"

	"github.com/resumerelay/internal/config"
	"github.com/resumerelay/internal/crypto"
	"github.com/resumerelay/internal/intake"
	"github.com/resumerelay/internal/mailer"
	"github.com/resumerelay/internal/ratelimit"
	"github.com/resumerelay/internal/relay"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config    *config.Config
	logger    *slog.Logger
	transport mailer.Transport
	limits    *ratelimit.MemStore
	digester  *crypto.Digester
	intake    *intake.Intake
	relay     *relay.Relay
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg)

	return newApp(cfg, logger, newTransport(cfg, logger))
}

func newApp(cfg *config.Config, logger *slog.Logger, transport mailer.Transport) (*App, error) {
	limits, err := ratelimit.NewMemStore(cfg.RateLimitMax, cfg.RateLimitWindow)
	if err != nil {
		return nil, fmt.Errorf("rate limit store: %w", err)
	}

	digester := crypto.New(cfg.RateLimitKey)
	from := mail.Address{Name: cfg.MailFromName, Address: cfg.MailFromAddress}
	composer := mailer.NewComposer(from, cfg.RecruiterEmail, cfg.PromoURL)

	return &App{
		config:    cfg,
		logger:    logger,
		transport: transport,
		limits:    limits,
		digester:  digester,
		intake:    intake.New(cfg.MaxUploadBytes),
		relay:     relay.New(composer, transport, digester, logger),
	}, nil
}

func newTransport(cfg *config.Config, logger *slog.Logger) mailer.Transport {
	switch cfg.MailTransport {
	case config.TransportResend:
		return mailer.NewResendClient(cfg.ResendAPIKey, cfg.ResendBaseURL, cfg.MailSendTimeout, logger)
	case config.TransportLog:
		return mailer.NewLogSender(logger)
	default:
		return mailer.New(&mailer.Config{
			Host:           cfg.SMTPHost,
			Port:           cfg.SMTPPort,
			Username:       cfg.SMTPUser,
			Password:       cfg.SMTPPass,
			Timeout:        cfg.MailSendTimeout,
			SendsPerSecond: cfg.MailSendsPerSecond,
		}, logger)
	}
}

// verifyTransport checks the mail transport once. Failure is logged only;
// the server still starts and sends are attempted per request.
func (app *App) verifyTransport(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, app.config.MailSendTimeout)
	defer cancel()

	if err := app.transport.Ping(ctx); err != nil {
		app.logger.Error("mail transport verification failed", "transport", app.config.MailTransport, "error", err)
		return
	}
	app.logger.Info("mail transport ready", "transport", app.config.MailTransport)
}

func (app *App) Start(ctx context.Context) error {
	// Create an errgroup derived from the parent context
	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", app.config.Port),
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: app.config.MailSendTimeout*2 + 30*time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
	}

	app.verifyTransport(ctx)

	g.Go(func() error {
		app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return app.limits.RunSweeper(gctx, app.logger)
	})

	// Start shutdown listener
	g.Go(func() error {
		<-gctx.Done() // Wait for OS signal or a sibling to fail

		app.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	app.logger.Info("stopped server")
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	logLevel := slog.LevelInfo

	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	slog.SetDefault(logger)
	return logger
}
