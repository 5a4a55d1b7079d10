package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"clinic-portal-server/internal/apperrors"
	"clinic-portal-server/internal/appointment"
	"clinic-portal-server/internal/config"
	"clinic-portal-server/internal/logging"
	"clinic-portal-server/internal/metrics"
	"clinic-portal-server/internal/middleware"
	"clinic-portal-server/internal/models"
	"clinic-portal-server/internal/notify"
	"clinic-portal-server/internal/routes"
	"clinic-portal-server/internal/store"
	"clinic-portal-server/internal/telemedicine"
	"clinic-portal-server/internal/utils"
)

const shutdownTimeout = 10 * time.Second

// backend is the persistence surface the services and handlers share.
type backend interface {
	appointment.Store
	telemedicine.Store
	CreateUser(ctx context.Context, user *models.User) error
	ListUsers(ctx context.Context, role models.Role) ([]models.User, error)
}

func runServe(cmd *cobra.Command, memory bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(serviceName, cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		data  backend
		ready func() error
	)
	if memory {
		mem := store.NewMemoryStore()
		if err := seedUsers(ctx, mem, cfg, logger); err != nil {
			return err
		}
		data = mem
	} else {
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		data = store.NewGormStore(db)
		ready = func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Ping()
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	loc, err := cfg.Appointments.Location()
	if err != nil {
		return err
	}

	sender, err := buildEmailSender(ctx, cfg, logger)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(sender, cfg.Mailer.FromName, cfg.Appointments.VerificationTokenExpiry, logger)

	provider, err := buildVideoProvider(cfg, m)
	if err != nil {
		return err
	}

	locker, closeLocker := buildLocker(cfg, logger)
	defer closeLocker()

	tokens, err := appointment.NewTokenCodec(cfg.Appointments.TokenSecret, cfg.Appointments.VerificationTokenExpiry)
	if err != nil {
		return err
	}

	appointments := appointment.NewService(data, tokens, dispatcher, appointment.Options{
		Policy: appointment.Policy{
			AllowPendingCompletion:   cfg.Appointments.AllowPendingCompletion,
			RestrictToAssignedDoctor: cfg.Appointments.AssignedDoctorOnly,
		},
		VerifyURLBase: cfg.Appointments.VerifyURLBase,
		Location:      loc,
		NotifyTimeout: cfg.Appointments.ExternalCallTimeout,
		Logger:        logger,
		Metrics:       m,
	})

	meetings := telemedicine.NewProvisioner(data, provider, locker, dispatcher, telemedicine.Options{
		CallTimeout:   cfg.Appointments.ExternalCallTimeout,
		LockWait:      cfg.Appointments.MeetingLockWait,
		Duration:      cfg.Appointments.MeetingDuration,
		NotifyTimeout: cfg.Appointments.ExternalCallTimeout,
		Logger:        logger,
		Metrics:       m,
	})

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger))

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, routes.Dependencies{
		JWTSecret:    cfg.JWTSecret,
		Appointments: appointments,
		Meetings:     meetings,
		Users:        data,
		Gatherer:     registry,
		Ready:        ready,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Environment).
			Str("video_provider", provider.Name()).
			Bool("memory_store", memory).
			Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := models.InitDB(models.DatabaseConfig{
		DSN:   cfg.Database.DSN,
		Debug: cfg.Database.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return db, nil
}

func migrate(db *gorm.DB) error {
	if err := models.Migrate(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// buildEmailSender selects the mail transport. Misconfigured transports fall
// back to the stub so bookings still succeed.
func buildEmailSender(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (notify.EmailSender, error) {
	switch cfg.Mailer.Transport {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.Mailer.SendGridAPIKey,
			FromEmail: cfg.Mailer.DefaultFrom,
			FromName:  cfg.Mailer.FromName,
		}, logger); s != nil {
			return s, nil
		}
		logger.Warn().Msg("SENDGRID_API_KEY not set, emails will only be logged")
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Mailer.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		if s := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.Mailer.DefaultFrom,
			FromName:  cfg.Mailer.FromName,
		}, logger); s != nil {
			return s, nil
		}
	case "stub", "":
	default:
		logger.Warn().Str("transport", cfg.Mailer.Transport).Msg("unknown mailer transport, emails will only be logged")
	}
	return notify.NewStubEmailSender(logger), nil
}

func buildVideoProvider(cfg *config.Config, m *metrics.Metrics) (telemedicine.VideoProvider, error) {
	switch cfg.Video.Provider {
	case "zoom":
		provider, err := telemedicine.NewZoomProvider(telemedicine.ZoomConfig{
			BaseURL:      cfg.Video.ZoomBaseURL,
			TokenURL:     cfg.Video.ZoomTokenURL,
			AccountID:    cfg.Video.ZoomAccountID,
			ClientID:     cfg.Video.ZoomClientID,
			ClientSecret: cfg.Video.ZoomClientSecret,
			AccessToken:  cfg.Video.ZoomAccessToken,
			Timeout:      cfg.Appointments.ExternalCallTimeout,
		}, m)
		if err != nil {
			return nil, fmt.Errorf("zoom provider: %w", err)
		}
		return provider, nil
	case "stub":
		return telemedicine.NewStubProvider(cfg.AppURL + "/meet"), nil
	default:
		return nil, fmt.Errorf("unknown VIDEO_PROVIDER %q", cfg.Video.Provider)
	}
}

// buildLocker uses Redis when configured so that several instances share the
// per-appointment meeting lock.
func buildLocker(cfg *config.Config, logger zerolog.Logger) (telemedicine.Locker, func()) {
	if cfg.Redis.Addr == "" {
		return telemedicine.NewKeyedMutex(), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	// Lock TTL outlives the longest provider call.
	ttl := cfg.Appointments.ExternalCallTimeout + cfg.Appointments.MeetingLockWait
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("using redis meeting locks")
	return telemedicine.NewRedisLocker(client, ttl), func() {
		if err := client.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close redis client")
		}
	}
}

type userCreator interface {
	CreateUser(ctx context.Context, user *models.User) error
}

var devUsers = []models.User{
	{Email: "admin@clinic.local", FirstName: "Ada", LastName: "Admin", Role: models.RoleAdmin},
	{Email: "doctor@clinic.local", FirstName: "Gregory", LastName: "House", Role: models.RoleDoctor},
	{Email: "patient@clinic.local", FirstName: "Pat", LastName: "Doe", Role: models.RolePatient},
}

// seedUsers inserts the development accounts and logs a bearer token for each.
// Existing accounts are skipped.
func seedUsers(ctx context.Context, users userCreator, cfg *config.Config, logger zerolog.Logger) error {
	ttl := time.Duration(cfg.JWTExpirationMinutes) * time.Minute
	for _, tmpl := range devUsers {
		user := tmpl
		user.IsVerified = true
		if err := user.SetPassword("password123"); err != nil {
			return err
		}
		if err := users.CreateUser(ctx, &user); err != nil {
			if errors.Is(err, apperrors.ErrDuplicateRecord) {
				logger.Info().Str("email", user.Email).Msg("seed user already exists")
				continue
			}
			return fmt.Errorf("failed to seed %s: %w", user.Email, err)
		}

		token, err := utils.GenerateAccessToken(&user, cfg.JWTSecret, ttl)
		if err != nil {
			return err
		}
		logger.Info().
			Str("id", user.ID).
			Str("email", user.Email).
			Str("role", string(user.Role)).
			Str("access_token", token).
			Msg("seeded user")
	}
	return nil
}
