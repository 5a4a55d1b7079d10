package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	Port        string
	Origin      string
	Environment string
	LogLevel    string
	AppURL      string

	// JWTSecret validates bearer tokens issued by the account service.
	JWTSecret            string
	JWTExpirationMinutes int

	Database     DatabaseConfig
	Redis        RedisConfig
	Mailer       MailerConfig
	Video        VideoConfig
	Appointments AppointmentConfig
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
	Debug    bool
}

// RedisConfig holds the optional Redis connection used for cross-instance locks.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MailerConfig holds email service configuration
type MailerConfig struct {
	Transport      string
	DefaultFrom    string
	FromName       string
	SendGridAPIKey string
	AWSRegion      string
}

// VideoConfig holds video-conferencing provider configuration
type VideoConfig struct {
	Provider         string
	ZoomBaseURL      string
	ZoomTokenURL     string
	ZoomAccountID    string
	ZoomClientID     string
	ZoomClientSecret string
	ZoomAccessToken  string
}

// AppointmentConfig holds appointment lifecycle and telemedicine settings
type AppointmentConfig struct {
	TokenSecret             string
	VerificationTokenExpiry time.Duration
	VerifyURLBase           string
	Timezone                string
	AllowPendingCompletion  bool
	AssignedDoctorOnly      bool
	ExternalCallTimeout     time.Duration
	MeetingDuration         time.Duration
	MeetingLockWait         time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	environment := getEnv("APP_ENV", getEnv("NODE_ENV", "development"))

	// Load database configuration
	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "clinic"),
	}

	// Build DSN (Data Source Name) for MySQL connection
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	dbDebug, err := strconv.ParseBool(getEnv("DB_DEBUG", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_DEBUG: %w", err)
	}
	dbConfig.Debug = dbDebug

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	redisConfig := RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
	}

	// Load mailer configuration
	mailerConfig := MailerConfig{
		Transport:      strings.ToLower(getEnv("MAILER_TRANSPORT", "stub")),
		DefaultFrom:    getEnv("MAILER_DEFAULT_FROM", "no-reply@clinic.local"),
		FromName:       getEnv("MAILER_FROM_NAME", "Clinic Portal"),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
	}

	videoConfig := VideoConfig{
		Provider:         strings.ToLower(getEnv("VIDEO_PROVIDER", defaultVideoProvider(environment))),
		ZoomBaseURL:      getEnv("ZOOM_BASE_URL", "https://api.zoom.us/v2"),
		ZoomTokenURL:     getEnv("ZOOM_TOKEN_URL", "https://zoom.us/oauth/token"),
		ZoomAccountID:    getEnv("ZOOM_ACCOUNT_ID", ""),
		ZoomClientID:     getEnv("ZOOM_CLIENT_ID", ""),
		ZoomClientSecret: getEnv("ZOOM_CLIENT_SECRET", ""),
		ZoomAccessToken:  getEnv("ZOOM_ACCESS_TOKEN", ""),
	}

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	verificationTokenExpiry, err := strconv.Atoi(getEnv("VERIFICATION_TOKEN_EXPIRY_HOURS", "24"))
	if err != nil {
		return nil, fmt.Errorf("invalid VERIFICATION_TOKEN_EXPIRY_HOURS: %w", err)
	}

	allowPendingCompletion, err := strconv.ParseBool(getEnv("ALLOW_PENDING_COMPLETION", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid ALLOW_PENDING_COMPLETION: %w", err)
	}

	assignedDoctorOnly, err := strconv.ParseBool(getEnv("STATUS_UPDATE_ASSIGNED_DOCTOR_ONLY", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid STATUS_UPDATE_ASSIGNED_DOCTOR_ONLY: %w", err)
	}

	externalTimeout, err := strconv.Atoi(getEnv("EXTERNAL_CALL_TIMEOUT_SECONDS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid EXTERNAL_CALL_TIMEOUT_SECONDS: %w", err)
	}

	meetingDuration, err := strconv.Atoi(getEnv("MEETING_DURATION_MINUTES", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid MEETING_DURATION_MINUTES: %w", err)
	}

	lockWait, err := strconv.Atoi(getEnv("MEETING_LOCK_WAIT_SECONDS", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid MEETING_LOCK_WAIT_SECONDS: %w", err)
	}

	appURL := getEnv("APP_URL", "http://localhost:3001")

	tokenSecret := getEnv("APPOINTMENT_TOKEN_SECRET", "")
	if tokenSecret == "" {
		if environment != "development" {
			return nil, fmt.Errorf("APPOINTMENT_TOKEN_SECRET is required outside development")
		}
		tokenSecret = "development_appointment_token_secret"
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		if environment != "development" {
			return nil, fmt.Errorf("JWT_SECRET is required outside development")
		}
		jwtSecret = "development_jwt_secret"
	}

	appointmentConfig := AppointmentConfig{
		TokenSecret:             tokenSecret,
		VerificationTokenExpiry: time.Duration(verificationTokenExpiry) * time.Hour,
		VerifyURLBase:           getEnv("VERIFY_URL_BASE", appURL+"/api/v1/appointments/verify"),
		Timezone:                getEnv("CLINIC_TIMEZONE", "Local"),
		AllowPendingCompletion:  allowPendingCompletion,
		AssignedDoctorOnly:      assignedDoctorOnly,
		ExternalCallTimeout:     time.Duration(externalTimeout) * time.Second,
		MeetingDuration:         time.Duration(meetingDuration) * time.Minute,
		MeetingLockWait:         time.Duration(lockWait) * time.Second,
	}

	// Return complete configuration
	return &Config{
		Port:                 getEnv("PORT", "3001"),
		Origin:               getEnv("ORIGIN", "http://localhost:4200"),
		Environment:          environment,
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		AppURL:               appURL,
		JWTSecret:            jwtSecret,
		JWTExpirationMinutes: jwtExpMinutes,
		Database:             dbConfig,
		Redis:                redisConfig,
		Mailer:               mailerConfig,
		Video:                videoConfig,
		Appointments:         appointmentConfig,
	}, nil
}

// Location resolves the clinic timezone used to combine appointment dates and times.
func (c AppointmentConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid CLINIC_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// defaultVideoProvider lets development run without Zoom credentials.
func defaultVideoProvider(environment string) string {
	if environment == "development" {
		return "stub"
	}
	return "zoom"
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
