package unit

import (
	"testing"
	"time"

	"github.com/codeinmyveins/chatverse/internal/server"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := server.NewConfig()

	if cfg.Port != ":5000" {
		t.Errorf("expected port :5000, got %s", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:5173" {
		t.Errorf("unexpected default origins: %v", cfg.AllowedOrigins)
	}
	if cfg.MaxMessageSize != 4096 {
		t.Errorf("expected max message size 4096, got %d", cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != 10 {
		t.Errorf("expected burst 10, got %d", cfg.RateLimit.Burst)
	}
	if cfg.RateLimit.RefillInterval != time.Second {
		t.Errorf("expected refill interval 1s, got %s", cfg.RateLimit.RefillInterval)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("expected shutdown timeout 10s, got %s", cfg.ShutdownTimeout)
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "https://chat.example.com, https://admin.example.com")
	t.Setenv("MAX_MESSAGE_SIZE", "8192")
	t.Setenv("RATE_LIMIT_BURST", "25")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("DATABASE_DSN", "postgres://env@db:5432/chatverse")
	t.Setenv("SHUTDOWN_TIMEOUT", "30")

	cfg := server.NewConfigFromEnv()

	if cfg.Port != ":9090" {
		t.Errorf("expected port :9090, got %s", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://chat.example.com" {
		t.Errorf("unexpected origins: %v", cfg.AllowedOrigins)
	}
	if cfg.MaxMessageSize != 8192 {
		t.Errorf("expected max message size 8192, got %d", cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != 25 {
		t.Errorf("expected burst 25, got %d", cfg.RateLimit.Burst)
	}
	if cfg.RateLimit.RefillInterval != 2*time.Second {
		t.Errorf("expected refill interval 2s, got %s", cfg.RateLimit.RefillInterval)
	}
	if cfg.JWTSecret != "env-secret" {
		t.Errorf("unexpected jwt secret: %s", cfg.JWTSecret)
	}
	if cfg.DatabaseDSN != "postgres://env@db:5432/chatverse" {
		t.Errorf("unexpected dsn: %s", cfg.DatabaseDSN)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("expected shutdown timeout 30s, got %s", cfg.ShutdownTimeout)
	}
}

func TestNewConfigFromEnvClientURLFallback(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("CLIENT_URL", "https://client.example.com")

	cfg := server.NewConfigFromEnv()

	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://client.example.com" {
		t.Errorf("expected CLIENT_URL fallback, got %v", cfg.AllowedOrigins)
	}
}

func TestNewConfigFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "not-a-number")
	t.Setenv("RATE_LIMIT_BURST", "-3")
	t.Setenv("SHUTDOWN_TIMEOUT", "0")

	cfg := server.NewConfigFromEnv()

	if cfg.MaxMessageSize != 4096 {
		t.Errorf("expected default max message size, got %d", cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != 10 {
		t.Errorf("expected default burst, got %d", cfg.RateLimit.Burst)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("expected default shutdown timeout, got %s", cfg.ShutdownTimeout)
	}
}
