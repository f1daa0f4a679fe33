package lattice

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/latticegraph/lattice-go/pkg/trust"
)

// RetryConfig enables opt-in retry of idempotent reads. Only GET requests are
// ever retried: a failed mutation may already have applied server-side, so
// retrying it is a decision only the caller can make.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialBackoff before the second attempt. Default: 250ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential growth. Default: 5s.
	MaxBackoff time.Duration
}

// Config configures a Client. The endpoint and PSK are fixed for the client's
// lifetime; construct a new client to change either, or to pick up a rotated
// core certificate.
type Config struct {
	// BaseURL is the base URL of the core, e.g. "https://lattice.example.com:8900".
	// An https URL makes client construction resolve and pin the core's
	// CA certificate.
	BaseURL string

	// PSK is the pre-shared key requests are signed with. Empty means the
	// core runs without authentication and requests are sent unsigned.
	PSK string

	// Timeout applies per request. Default: 30 seconds.
	Timeout time.Duration

	// CacheDir overrides where the trust anchor is cached.
	CacheDir string

	// Retry, when set, retries idempotent reads on transport failures and
	// 5xx responses.
	Retry *RetryConfig

	Logger hclog.Logger

	// TrustFs overrides the filesystem backing the trust-anchor cache.
	// Used by tests; defaults to the OS filesystem.
	TrustFs afero.Fs
}

// DefaultConfig returns a Config with defaults applied.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, validation.By(validBaseURL)),
		validation.Field(&c.Timeout, validation.By(nonNegativeDuration)),
		validation.Field(&c.Retry, validation.By(validRetry)),
	)
}

func validBaseURL(value any) error {
	raw, _ := value.(string)
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func nonNegativeDuration(value any) error {
	d, _ := value.(time.Duration)
	if d < 0 {
		return errors.New("must be non-negative")
	}
	return nil
}

func validRetry(value any) error {
	r, _ := value.(*RetryConfig)
	if r == nil {
		return nil
	}
	if r.MaxAttempts < 1 {
		return errors.New("max attempts must be at least 1")
	}
	if r.InitialBackoff < 0 || r.MaxBackoff < 0 {
		return errors.New("backoff durations must be non-negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = hclog.NewNullLogger()
	}
	if c.Retry != nil {
		if c.Retry.InitialBackoff == 0 {
			c.Retry.InitialBackoff = 250 * time.Millisecond
		}
		if c.Retry.MaxBackoff == 0 {
			c.Retry.MaxBackoff = 5 * time.Second
		}
	}
}

func (c *Config) newResolver() *trust.Resolver {
	return trust.NewResolver(trust.ResolverConfig{
		CacheDir: c.CacheDir,
		Fs:       c.TrustFs,
		Timeout:  c.Timeout,
		Logger:   c.Logger,
	})
}
