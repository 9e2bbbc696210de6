package utils

import (
	"errors"
	"io/fs"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Telegram TelegramConfig
	Auth     AuthConfig
}

type AppConfig struct {
	Name    string
	Port    string
	Debug   bool
	LogPath string
}

type DatabaseConfig struct {
	Driver      string
	Host        string
	Port        string
	Name        string
	User        string
	Password    string
	MaxConns    int32
	AutoMigrate bool
}

type JWTConfig struct {
	Secret           string
	Issuer           string
	AccessTTLMinutes int
	RefreshTTLHours  int
}

type TelegramConfig struct {
	BotToken             string
	BotUsername          string
	APIEndpoint          string
	WebhookSecret        string
	NotifyTimeoutSeconds int
}

// AuthConfig holds the verification windows and OTP brute-force limits.
type AuthConfig struct {
	CodeExpiryMinutes  int
	OTPExpiryMinutes   int
	OTPCooldownSeconds int
	MaxOTPAttempts     int
	LockoutMinutes     int
	OTPLength          int
}

// DSN builds a postgres URL usable by both pgxpool and golang-migrate.
func (c DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.Name + "?sslmode=disable"
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "telegram-auth")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("STORE_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("DB_AUTO_MIGRATE", true)
	viper.SetDefault("JWT_ISSUER", "telegram-auth")
	viper.SetDefault("JWT_ACCESS_TTL_MINUTES", 15)
	viper.SetDefault("JWT_REFRESH_TTL_HOURS", 24*7)
	viper.SetDefault("TELEGRAM_API_ENDPOINT", "https://api.telegram.org/bot%s/%s")
	viper.SetDefault("TELEGRAM_NOTIFY_TIMEOUT_SECONDS", 5)
	viper.SetDefault("TELEGRAM_CODE_EXPIRY_MINUTES", 2)
	viper.SetDefault("OTP_EXPIRY_MINUTES", 5)
	viper.SetDefault("OTP_COOLDOWN_SECONDS", 60)
	viper.SetDefault("MAX_OTP_ATTEMPTS", 5)
	viper.SetDefault("OTP_LOCKOUT_MINUTES", 10)
	viper.SetDefault("OTP_LENGTH", 6)

	if err := viper.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:    viper.GetString("APP_NAME"),
			Port:    viper.GetString("PORT"),
			Debug:   viper.GetBool("DEBUG"),
			LogPath: viper.GetString("LOG_PATH"),
		},
		Database: DatabaseConfig{
			Driver:      viper.GetString("STORE_DRIVER"),
			Host:        viper.GetString("DB_HOST"),
			Port:        viper.GetString("DB_PORT"),
			Name:        viper.GetString("DB_NAME"),
			User:        viper.GetString("DB_USER"),
			Password:    viper.GetString("DB_PASS"),
			MaxConns:    viper.GetInt32("DB_MAX_CONNS"),
			AutoMigrate: viper.GetBool("DB_AUTO_MIGRATE"),
		},
		JWT: JWTConfig{
			Secret:           viper.GetString("JWT_SECRET"),
			Issuer:           viper.GetString("JWT_ISSUER"),
			AccessTTLMinutes: viper.GetInt("JWT_ACCESS_TTL_MINUTES"),
			RefreshTTLHours:  viper.GetInt("JWT_REFRESH_TTL_HOURS"),
		},
		Telegram: TelegramConfig{
			BotToken:             viper.GetString("TELEGRAM_BOT_TOKEN"),
			BotUsername:          viper.GetString("TELEGRAM_BOT_USERNAME"),
			APIEndpoint:          viper.GetString("TELEGRAM_API_ENDPOINT"),
			WebhookSecret:        viper.GetString("TELEGRAM_WEBHOOK_SECRET"),
			NotifyTimeoutSeconds: viper.GetInt("TELEGRAM_NOTIFY_TIMEOUT_SECONDS"),
		},
		Auth: AuthConfig{
			CodeExpiryMinutes:  viper.GetInt("TELEGRAM_CODE_EXPIRY_MINUTES"),
			OTPExpiryMinutes:   viper.GetInt("OTP_EXPIRY_MINUTES"),
			OTPCooldownSeconds: viper.GetInt("OTP_COOLDOWN_SECONDS"),
			MaxOTPAttempts:     viper.GetInt("MAX_OTP_ATTEMPTS"),
			LockoutMinutes:     viper.GetInt("OTP_LOCKOUT_MINUTES"),
			OTPLength:          viper.GetInt("OTP_LENGTH"),
		},
	}

	if config.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return config, nil
}
