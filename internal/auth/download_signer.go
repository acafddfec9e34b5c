package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultDownloadTTL    = time.Hour
	downloadAudience      = "companion-files"
	defaultDownloadIssuer = "companion-api"
	downloadKindBlob      = "blob"
)

var (
	// ErrMissingDownloadSecret indicates the signer was built without a key.
	ErrMissingDownloadSecret = errors.New("download signer: signing secret required")
	// ErrMissingDownloadPath indicates an empty blob path.
	ErrMissingDownloadPath = errors.New("download signer: path required")
	// ErrInvalidDownloadToken indicates a malformed, expired or foreign token.
	ErrInvalidDownloadToken = errors.New("download signer: invalid token")
	// ErrDownloadPathMismatch indicates a valid token presented for another path.
	ErrDownloadPathMismatch = errors.New("download signer: token does not cover path")
)

type downloadClaims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// DownloadSignerConfig configures signed blob links.
type DownloadSignerConfig struct {
	SigningSecret []byte
	Issuer        string
	TTL           time.Duration
	Clock         func() time.Time
}

// DownloadSigner mints and checks short-lived tokens bound to one blob path.
type DownloadSigner struct {
	signingSecret []byte
	issuer        string
	ttl           time.Duration
	clock         func() time.Time
}

// NewDownloadSigner constructs a DownloadSigner. TTL defaults to one hour.
func NewDownloadSigner(cfg DownloadSignerConfig) (*DownloadSigner, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingDownloadSecret
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultDownloadTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultDownloadIssuer
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &DownloadSigner{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		ttl:           ttl,
		clock:         clock,
	}, nil
}

// SignPath returns a token authorizing a download of blobPath until the returned expiry.
func (s *DownloadSigner) SignPath(blobPath string) (string, time.Time, error) {
	if strings.TrimSpace(blobPath) == "" {
		return "", time.Time{}, ErrMissingDownloadPath
	}
	now := s.clock().UTC()
	expiresAt := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, downloadClaims{
		Kind: downloadKindBlob,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   blobPath,
			Issuer:    s.issuer,
			Audience:  []string{downloadAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(s.signingSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyPath checks that tokenString is valid and was issued for blobPath.
func (s *DownloadSigner) VerifyPath(tokenString, blobPath string) error {
	claims := &downloadClaims{}
	_, err := jwt.ParseWithClaims(
		strings.TrimSpace(tokenString),
		claims,
		func(*jwt.Token) (interface{}, error) {
			return s.signingSecret, nil
		},
		jwt.WithAudience(downloadAudience),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDownloadToken, err)
	}
	if claims.Kind != downloadKindBlob || claims.Subject != blobPath {
		return ErrDownloadPathMismatch
	}
	return nil
}
