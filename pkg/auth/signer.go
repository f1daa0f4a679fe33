// Package auth derives per-request authentication headers from a pre-shared
// key (PSK).
//
// Requests are authenticated with a short-lived JWT carried in the standard
// Authorization header. The signing key is not the PSK itself: each token is
// signed with a key derived from the PSK via salted PBKDF2, and the salt
// travels base64-encoded in the JWT header so the server (or any other PSK
// holder) can re-derive the key and verify. Two tokens minted back to back
// therefore differ, but both verify against the same PSK.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"

	cryptorand "crypto/rand"
)

const (
	// saltHeader is the JWT header field carrying the PBKDF2 salt.
	saltHeader = "salt"

	keyIterations = 100000
	keyLength     = 32
	saltLength    = 16
)

// DefaultTokenTTL bounds how long a minted token verifies. Tokens are minted
// fresh per request, so the window only needs to cover clock skew plus one
// round trip.
const DefaultTokenTTL = 5 * time.Minute

// ErrNoSecret is returned when signing or verification is attempted with an
// empty PSK. An empty PSK means "no authentication configured": callers must
// skip signing entirely rather than sign with an empty key.
var ErrNoSecret = errors.New("auth: no pre-shared key configured")

// SigningError indicates the PSK or claims could not be turned into a token.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("auth: signing failed: %v", e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// VerificationError indicates a presented token did not verify against the PSK.
type VerificationError struct {
	Err error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("auth: token verification failed: %v", e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

func deriveKey(psk string, salt []byte) []byte {
	return pbkdf2.Key([]byte(psk), salt, keyIterations, keyLength, sha256.New)
}

// SignToken mints a JWT over claims, signed with a key derived from psk.
// A fresh random salt is drawn per token and embedded in the token header.
// The registered claims exp, iat and jti are set by this function and
// override same-named entries in claims.
func SignToken(psk string, claims map[string]any, ttl time.Duration) (string, error) {
	if psk == "" {
		return "", ErrNoSecret
	}
	if !utf8.ValidString(psk) {
		return "", &SigningError{Err: errors.New("pre-shared key is not valid UTF-8")}
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	salt := make([]byte, saltLength)
	if _, err := cryptorand.Read(salt); err != nil {
		return "", &SigningError{Err: fmt.Errorf("reading salt: %w", err)}
	}

	now := time.Now()
	mapClaims := jwt.MapClaims{}
	for k, v := range claims {
		mapClaims[k] = v
	}
	mapClaims["exp"] = now.Add(ttl).Unix()
	mapClaims["iat"] = now.Unix()
	mapClaims["jti"] = uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims)
	token.Header[saltHeader] = base64.StdEncoding.EncodeToString(salt)

	signed, err := token.SignedString(deriveKey(psk, salt))
	if err != nil {
		return "", &SigningError{Err: err}
	}
	return signed, nil
}

// Sign produces the header set that authenticates one request. It is a pure
// function of (psk, claims) apart from the embedded issue time and salt; the
// result must not be reused across requests.
func Sign(psk string, claims map[string]any) (http.Header, error) {
	token, err := SignToken(psk, claims, DefaultTokenTTL)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h, nil
}

// Verify checks a token minted by SignToken (or any holder of the same PSK)
// and returns its claims. The PBKDF2 salt is read from the unverified token
// header; the signature and the exp claim are then verified against the
// re-derived key.
func Verify(psk, token string) (jwt.MapClaims, error) {
	if psk == "" {
		return nil, ErrNoSecret
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		rawSalt, ok := t.Header[saltHeader].(string)
		if !ok {
			return nil, errors.New("token header carries no salt")
		}
		salt, err := base64.StdEncoding.DecodeString(rawSalt)
		if err != nil {
			return nil, fmt.Errorf("decoding salt: %w", err)
		}
		return deriveKey(psk, salt), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, &VerificationError{Err: err}
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, &VerificationError{Err: errors.New("unexpected claims type")}
	}
	return claims, nil
}

// VerifyRequest verifies the Authorization header of an inbound request.
// Intended for test doubles and services that accept PSK-authenticated
// clients.
func VerifyRequest(psk string, r *http.Request) (jwt.MapClaims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, &VerificationError{Err: errors.New("missing authorization header")}
	}
	const prefix = "Bearer "
	if len(authHeader) <= len(prefix) || !constantTimeHasPrefix(authHeader, prefix) {
		return nil, &VerificationError{Err: errors.New("invalid authorization header format")}
	}
	return Verify(psk, authHeader[len(prefix):])
}

func constantTimeHasPrefix(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s[:len(prefix)]), []byte(prefix)) == 1
}
