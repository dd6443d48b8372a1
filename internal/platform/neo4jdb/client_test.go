package neo4jdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hedspi/phone-assistant/internal/platform/logger"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("NEO4J_URI", "")
	t.Setenv("NEO4J_USER", "")
	t.Setenv("NEO4J_TIMEOUT_SECONDS", "-4")
	cfg := ConfigFromEnv()
	if cfg.User != "neo4j" {
		t.Fatalf("user: want=neo4j got=%q", cfg.User)
	}
	if cfg.Timeout != 10*time.Second {
		t.Fatalf("timeout: want=10s got=%s", cfg.Timeout)
	}
	if cfg.MaxPoolSize != 50 {
		t.Fatalf("pool: want=50 got=%d", cfg.MaxPoolSize)
	}
}

func TestNewRequiresURI(t *testing.T) {
	_, err := New(context.Background(), logger.Nop(), Config{})
	if !errors.Is(err, ErrMissingURI) {
		t.Fatalf("New: want=ErrMissingURI got=%v", err)
	}
}

func TestCloseNilSafe(t *testing.T) {
	var c *Client
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
