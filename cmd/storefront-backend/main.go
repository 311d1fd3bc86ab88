package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"storefront-backend/internal/config"
	"storefront-backend/internal/dispatch"
	"storefront-backend/internal/domain"
	"storefront-backend/internal/infrastructure/events"
	"storefront-backend/internal/infrastructure/mailer"
	"storefront-backend/internal/infrastructure/repo"
	"storefront-backend/internal/server"
	"storefront-backend/internal/usecase"
)

const versionTimeFormat = "20060102150405"

func main() {
	// Existing process variables win over the files.
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	envDefaults := config.EnvDefaults()
	cfg := envDefaults

	rootCmd := &cobra.Command{
		Use:           "storefront-backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfg.Env, "env", envDefaults.Env, "")
	f.IntVar(&cfg.Port, "port", envDefaults.Port, "")
	f.StringVar(&cfg.DatabaseDSN, "database-dsn", envDefaults.DatabaseDSN, "")
	f.StringVar(&cfg.JWTSecret, "jwt-secret", envDefaults.JWTSecret, "")
	f.BoolVar(&cfg.LogJSON, "log-json", envDefaults.LogJSON, "")
	f.StringVar(&cfg.MigrationsDir, "migrations", envDefaults.MigrationsDir, "")

	rootCmd.AddCommand(
		serveCommand(&cfg),
		migrateCommand(&cfg),
		createMigrationCommand(&cfg),
		tokenCommand(&cfg),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	if cfg.LogJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if cfg.Env == "dev" {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func serveCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	log := newLogger(cfg)
	if cfg.JWTSecret == "" {
		if cfg.Env != "dev" {
			return errors.New("jwt secret is required outside dev")
		}
		cfg.JWTSecret = "dev-secret"
		log.Warn("using the dev jwt secret")
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var mail usecase.Mailer = mailer.LogMailer{Log: log}
	if cfg.SMTPHost != "" {
		mail = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}

	var pub usecase.EventPublisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		defer kp.Close()
		pub = kp
	}

	outbox := dispatch.New(dispatch.Options{
		Workers: cfg.DispatchWorkers,
		Queue:   cfg.DispatchQueue,
		Retries: cfg.DispatchRetries,
		Log:     log.WithField("component", "dispatch"),
	})

	coupons := &usecase.CouponService{Repo: store}
	svc := server.Services{
		Auth: &usecase.AuthService{JWTSecret: cfg.JWTSecret},
		Orders: &usecase.OrderService{
			Store:     store,
			Inventory: &usecase.Inventory{Products: store},
			Coupons:   coupons,
			Outbox:    outbox,
			Mailer:    mail,
			Events:    pub,
			Log:       log.WithField("component", "orders"),
		},
		Coupons:       coupons,
		Catalog:       &usecase.CatalogService{Products: store},
		Notifications: &usecase.NotificationService{Repo: store},
		Dashboard:     &usecase.DashboardService{Store: store},
	}

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.New(cfg, svc, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := outbox.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("dispatch drain")
	}
	log.Info("stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (usecase.Store, func(), error) {
	if cfg.DatabaseDSN != "" {
		pg, err := repo.NewPostgresStore(cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { _ = pg.Close() }, nil
	}
	if cfg.Env != "dev" {
		return nil, nil, errors.New("database dsn is required outside dev")
	}
	log.Warn("no database configured, using the in-memory store")
	mem := repo.NewMemoryStore()
	now := time.Now().UTC()
	for _, u := range []domain.User{
		{ID: "dev-user", Name: "Dev User", Email: "dev-user@storefront.local", Role: domain.RoleUser},
		{ID: "dev-admin", Name: "Dev Admin", Email: "dev-admin@storefront.local", Role: domain.RoleAdmin},
	} {
		u.CreatedAt, u.UpdatedAt = now, now
		if err := mem.PutUser(ctx, &u); err != nil {
			return nil, nil, err
		}
	}
	return mem, func() {}, nil
}

func migrateCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-up",
		Short: "migrate all the way up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.DatabaseDSN == "" {
				return errors.New("database dsn is required")
			}
			m, err := migrate.New("file://"+cfg.MigrationsDir, cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			defer m.Close()

			err = m.Up()
			if errors.Is(err, migrate.ErrNoChange) {
				fmt.Println("No change in migration")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Println("Migrated up")
			return nil
		},
	}
}

func createMigrationCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-create [name]",
		Short: "create sql migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := time.Now().Format(versionTimeFormat)
			name := strings.ReplaceAll(strings.TrimSpace(args[0]), " ", "_")
			up := fmt.Sprintf("%s/%s_%s.up.sql", cfg.MigrationsDir, version, name)
			down := fmt.Sprintf("%s/%s_%s.down.sql", cfg.MigrationsDir, version, name)

			if err := os.WriteFile(up, []byte{}, 0o644); err != nil {
				return err
			}
			if err := os.WriteFile(down, []byte{}, 0o644); err != nil {
				return err
			}
			fmt.Println("Created SQL up script:", up)
			fmt.Println("Created SQL down script:", down)
			return nil
		},
	}
}

func tokenCommand(cfg *config.Config) *cobra.Command {
	var admin bool
	cmd := &cobra.Command{
		Use:   "token [user-id]",
		Short: "mint a bearer token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := cfg.JWTSecret
			if secret == "" && cfg.Env == "dev" {
				secret = "dev-secret"
			}
			if secret == "" {
				return errors.New("jwt secret is required")
			}
			role := domain.RoleUser
			if admin {
				role = domain.RoleAdmin
			}
			auth := &usecase.AuthService{JWTSecret: secret}
			tok, err := auth.Issue(args[0], role)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "issue an admin token")
	return cmd
}
