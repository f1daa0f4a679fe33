// Package trust resolves and pins the certificate authority a Lattice core
// presents on an encrypted endpoint.
//
// A Lattice core issues its own CA rather than using a public one. Before the
// first real request, the client fetches the CA certificate from the core's
// well-known retrieval path over a deliberately unverified channel, and
// authenticates the payload out of band: when a PSK is configured the core
// signs the certificate's SHA-256 fingerprint into a JWT it returns alongside
// the certificate, and the fetch fails unless that claim verifies and matches.
// The certificate is then pinned for every subsequent request and cached on
// local disk keyed by endpoint, so re-constructing a client against the same
// core does not refetch.
package trust

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/latticegraph/lattice-go/pkg/auth"
)

// CertificatePath is the well-known retrieval path for the core's CA
// certificate.
const CertificatePath = "/ca/cert"

// fingerprintClaim is the JWT claim the core signs the certificate
// fingerprint into.
const fingerprintClaim = "sha256_fingerprint"

// UnavailableError means no trust anchor could be obtained for an encrypted
// endpoint. It is fatal to client construction: there is no fallback to
// unverified transport.
type UnavailableError struct {
	Endpoint string
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("trust anchor unavailable for %s: %v", e.Endpoint, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Anchor is a pinned CA certificate for one endpoint.
type Anchor struct {
	cert      *x509.Certificate
	pemBytes  []byte
	cachePath string
}

// Certificate returns the pinned CA certificate.
func (a *Anchor) Certificate() *x509.Certificate {
	return a.cert
}

// PEM returns the PEM encoding of the pinned certificate.
func (a *Anchor) PEM() []byte {
	return append([]byte(nil), a.pemBytes...)
}

// CachePath returns the local cache file the certificate was persisted to,
// or "" if it was not persisted.
func (a *Anchor) CachePath() string {
	return a.cachePath
}

// Fingerprint returns the SHA-256 fingerprint of the certificate as
// colon-separated upper-case hex.
func (a *Anchor) Fingerprint() string {
	return Fingerprint(a.cert)
}

// CertPool returns a pool containing only the pinned certificate.
func (a *Anchor) CertPool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(a.cert)
	return pool
}

// TLSConfig returns a TLS configuration that verifies peers exclusively
// against the pinned certificate.
func (a *Anchor) TLSConfig() *tls.Config {
	return &tls.Config{
		RootCAs:    a.CertPool(),
		MinVersion: tls.VersionTLS12,
	}
}

// Fingerprint computes the SHA-256 fingerprint of a certificate as
// colon-separated upper-case hex.
func Fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	hexSum := strings.ToUpper(hex.EncodeToString(sum[:]))
	parts := make([]string, 0, len(hexSum)/2)
	for i := 0; i < len(hexSum); i += 2 {
		parts = append(parts, hexSum[i:i+2])
	}
	return strings.Join(parts, ":")
}

// ResolverConfig holds configuration for a Resolver.
type ResolverConfig struct {
	// CacheDir is the directory CA certificates are persisted to.
	// Default: <user cache dir>/lattice.
	CacheDir string

	// Fs is the filesystem used for the cache. Default: the OS filesystem.
	Fs afero.Fs

	// Timeout for the bootstrap fetch. Default: 10 seconds.
	Timeout time.Duration

	Logger hclog.Logger
}

// Resolver obtains and caches trust anchors.
type Resolver struct {
	cacheDir string
	fs       afero.Fs
	client   *http.Client
	logger   hclog.Logger
}

// NewResolver creates a resolver with defaults applied.
func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.CacheDir == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			cfg.CacheDir = filepath.Join(dir, "lattice")
		} else {
			cfg.CacheDir = filepath.Join(os.TempDir(), "lattice")
		}
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	// The anchor is what this fetch establishes, so the bootstrap channel
	// cannot verify the peer yet. Authenticity comes from the PSK-signed
	// fingerprint claim instead.
	bootstrap := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, //nolint:gosec // see comment above
				MinVersion:         tls.VersionTLS12,
			},
		},
	}

	return &Resolver{
		cacheDir: cfg.CacheDir,
		fs:       cfg.Fs,
		client:   bootstrap,
		logger:   cfg.Logger.Named("trust"),
	}
}

// Resolve returns the trust anchor for endpoint, reading the local cache
// first and fetching from the core's certificate path on a miss. The fetched
// certificate is authenticated against psk when one is configured; without a
// PSK the first certificate seen is pinned as-is.
func (r *Resolver) Resolve(ctx context.Context, endpoint, psk string) (*Anchor, error) {
	cachePath := r.cachePath(endpoint)

	cached, cacheErr := r.loadCached(cachePath)
	if cacheErr == nil {
		r.logger.Debug("trust anchor loaded from cache",
			"endpoint", endpoint,
			"path", cachePath,
			"fingerprint", cached.Fingerprint(),
		)
		return cached, nil
	}

	anchor, err := r.fetch(ctx, endpoint, psk)
	if err != nil {
		if !errors.Is(cacheErr, afero.ErrFileNotFound) && !os.IsNotExist(cacheErr) {
			err = multierror.Append(err, fmt.Errorf("cache read: %w", cacheErr))
		}
		return nil, &UnavailableError{Endpoint: endpoint, Err: err}
	}

	if err := r.persist(cachePath, anchor.pemBytes); err != nil {
		// A working anchor beats a warm cache; the next construction
		// will refetch.
		r.logger.Warn("failed to persist trust anchor cache",
			"endpoint", endpoint,
			"path", cachePath,
			"error", err,
		)
	} else {
		anchor.cachePath = cachePath
	}

	r.logger.Info("trust anchor resolved",
		"endpoint", endpoint,
		"fingerprint", anchor.Fingerprint(),
	)
	return anchor, nil
}

// Invalidate drops the cached certificate for endpoint, forcing the next
// Resolve to refetch. Missing cache entries are not an error.
func (r *Resolver) Invalidate(endpoint string) error {
	err := r.fs.Remove(r.cachePath(endpoint))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// cachePath keys the cache by a digest of the endpoint identity so distinct
// cores never share an anchor file.
func (r *Resolver) cachePath(endpoint string) string {
	sum := sha256.Sum256([]byte(canonicalEndpoint(endpoint)))
	return filepath.Join(r.cacheDir, hex.EncodeToString(sum[:8])+".crt")
}

func canonicalEndpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

func (r *Resolver) loadCached(path string) (*Anchor, error) {
	pemBytes, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, err
	}
	cert, err := parseCertificate(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("cached certificate at %s: %w", path, err)
	}
	return &Anchor{cert: cert, pemBytes: pemBytes, cachePath: path}, nil
}

func (r *Resolver) fetch(ctx context.Context, endpoint, psk string) (*Anchor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(endpoint, "/")+CertificatePath, nil)
	if err != nil {
		return nil, fmt.Errorf("building certificate request: %w", err)
	}
	req.Header.Set("Accept", "application/x-pem-file")

	if psk != "" {
		signed, err := auth.Sign(psk, nil)
		if err != nil {
			return nil, err
		}
		for name, values := range signed {
			for _, v := range values {
				req.Header.Set(name, v)
			}
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching certificate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("certificate fetch returned status %d: %s", resp.StatusCode, string(body))
	}

	pemBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading certificate: %w", err)
	}

	cert, err := parseCertificate(pemBytes)
	if err != nil {
		return nil, err
	}

	if psk != "" {
		if err := verifyFingerprint(psk, resp, cert); err != nil {
			return nil, err
		}
	}

	return &Anchor{cert: cert, pemBytes: pemBytes}, nil
}

// verifyFingerprint checks the PSK-signed fingerprint claim the core returns
// with the certificate. This is what makes the unverified bootstrap fetch
// trustworthy.
func verifyFingerprint(psk string, resp *http.Response, cert *x509.Certificate) error {
	authHeader := resp.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return errors.New("certificate response carries no signed fingerprint")
	}
	claims, err := auth.Verify(psk, strings.TrimPrefix(authHeader, prefix))
	if err != nil {
		return fmt.Errorf("fingerprint signature: %w", err)
	}
	claimed, _ := claims[fingerprintClaim].(string)
	if claimed == "" {
		return errors.New("signed response carries no fingerprint claim")
	}
	if !strings.EqualFold(claimed, Fingerprint(cert)) {
		return fmt.Errorf("certificate fingerprint mismatch: got %s, core signed %s", Fingerprint(cert), claimed)
	}
	return nil
}

func (r *Resolver) persist(path string, pemBytes []byte) error {
	if err := r.fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return afero.WriteFile(r.fs, path, pemBytes, 0o600)
}

func parseCertificate(pemBytes []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, errors.New("response is not a PEM certificate")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate: %w", err)
	}
	return cert, nil
}
