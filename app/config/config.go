package config

import (
	"os"
	"strconv"
	"time"

	// this will automatically load your .env file:
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Logs     LogConfig
	DB       PostgresConfig
	Stripe   StripeConfig
	YouTube  YouTubeConfig
	OpenAI   OpenAIConfig
	Credits  CreditConfig
	QueueURL string
	Port     string
}

type LogConfig struct {
	Style string
	Level string
}

type PostgresConfig struct {
	Username string
	Password string
	URL      string
	Port     string
}

type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	FrontendURL    string
}

type YouTubeConfig struct {
	APIKey      string
	MaxComments int
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

type CreditConfig struct {
	StarterCredits int
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		QueueURL: os.Getenv("QUEUE_URL"),
		Port:     envWithDefault("PORT", "8080"),
		Logs: LogConfig{
			Style: os.Getenv("LOG_STYLE"),
			Level: os.Getenv("LOG_LEVEL"),
		},
		DB: PostgresConfig{
			Username: os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PWD"),
			URL:      os.Getenv("POSTGRES_URL"),
			Port:     os.Getenv("POSTGRES_PORT"),
		},
		Stripe: StripeConfig{
			SecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
			PublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
			WebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
			FrontendURL:    os.Getenv("FRONTEND_URL"),
		},
		YouTube: YouTubeConfig{
			APIKey:      os.Getenv("YOUTUBE_API_KEY"),
			MaxComments: envInt("MAX_COMMENTS", 50),
		},
		OpenAI: OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   envWithDefault("OPENAI_MODEL", "gpt-4o-mini"),
			Timeout: time.Duration(envInt("OPENAI_TIMEOUT_SECONDS", 60)) * time.Second,
		},
		Credits: CreditConfig{
			StarterCredits: envInt("STARTER_CREDITS", 2),
		},
	}

	return cfg, nil
}

func envWithDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
