package lattice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			BaseURL: "https://core.example:8900",
			Timeout: 30 * time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid https config",
			mutate: func(c *Config) {},
		},
		{
			name:   "valid http config",
			mutate: func(c *Config) { c.BaseURL = "http://localhost:8900" },
		},
		{
			name:    "missing base URL",
			mutate:  func(c *Config) { c.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "unsupported scheme",
			mutate:  func(c *Config) { c.BaseURL = "ftp://core.example" },
			wantErr: true,
		},
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.BaseURL = "https://" },
			wantErr: true,
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Timeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "retry with zero attempts",
			mutate:  func(c *Config) { c.Retry = &RetryConfig{MaxAttempts: 0} },
			wantErr: true,
		},
		{
			name:   "retry with attempts",
			mutate: func(c *Config) { c.Retry = &RetryConfig{MaxAttempts: 3} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_applyDefaults(t *testing.T) {
	cfg := Config{BaseURL: "http://localhost:8900", Retry: &RetryConfig{MaxAttempts: 2}}
	cfg.applyDefaults()

	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.NotNil(t, cfg.Logger)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialBackoff)
	assert.Equal(t, 5*time.Second, cfg.Retry.MaxBackoff)
}
