package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string `env:"DATABASE_URL,required,notEmpty"`
	JWTSecretKey string `env:"JWT_SECRET_KEY,required,notEmpty"`
	ServerPort   int    `env:"SERVER_PORT" envDefault:"8080"`
	PublicURL    string `env:"PUBLIC_URL" envDefault:"http://localhost:3000"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// Окно перед стартом турнира, в течение которого снятие считается неявкой.
	WithdrawalPenaltyWindow time.Duration `env:"WITHDRAWAL_PENALTY_WINDOW" envDefault:"48h"`
	// Срок, за который команда из листа ожидания должна принять предложенный слот.
	WaitlistOfferWindow time.Duration `env:"WAITLIST_OFFER_WINDOW" envDefault:"24h"`

	InviteTTL       time.Duration `env:"INVITE_TTL" envDefault:"168h"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"30m"`
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort)
	}
	if c.WithdrawalPenaltyWindow < 0 {
		return fmt.Errorf("WITHDRAWAL_PENALTY_WINDOW must not be negative, got %s", c.WithdrawalPenaltyWindow)
	}
	if c.WaitlistOfferWindow <= 0 {
		return fmt.Errorf("WAITLIST_OFFER_WINDOW must be positive, got %s", c.WaitlistOfferWindow)
	}
	if c.InviteTTL <= 0 {
		return fmt.Errorf("INVITE_TTL must be positive, got %s", c.InviteTTL)
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive, got %s", c.CleanupInterval)
	}
	return nil
}
