package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/companion/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/reading"
	"gorm.io/gorm"
)

const (
	defaultProvider    = "default"
	lastSeenResolution = time.Minute
)

// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
var ErrInvalidIdentity = errors.New("users: invalid identity")

// ServiceConfig describes the dependencies required for reader resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service resolves session claims to stable reader ids.
type Service struct {
	db    *gorm.DB
	now   func() time.Time
	cache sync.Map
}

type cachedReader struct {
	readerID reading.UserID
	touched  time.Time
}

// NewService constructs the reader identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, now: clock}, nil
}

// ResolveReader returns the reader id for claims, registering first-time logins.
// A "provider:subject" user id is split into its provider and subject.
func (s *Service) ResolveReader(ctx context.Context, claims auth.SessionClaims) (reading.UserID, error) {
	provider, subject := deriveProviderSubject(claims)
	if subject == "" {
		return "", ErrInvalidIdentity
	}

	now := s.now().UTC()
	cacheKey := provider + ":" + subject
	if cached, ok := s.cache.Load(cacheKey); ok {
		entry := cached.(cachedReader)
		if now.Sub(entry.touched) < lastSeenResolution {
			return entry.readerID, nil
		}
	}

	var reader Reader
	err := s.db.WithContext(ctx).
		Where("provider = ? AND subject = ?", provider, subject).
		Take(&reader).
		Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		reader = Reader{
			Provider:    provider,
			Subject:     subject,
			ReaderID:    subject,
			DisplayName: normalize(claims.UserDisplayName),
			FirstSeenAt: now,
			LastSeenAt:  now,
		}
		if err := s.db.WithContext(ctx).Create(&reader).Error; err != nil {
			return "", err
		}
	case err != nil:
		return "", err
	default:
		updates := map[string]interface{}{"last_seen_at": now}
		if display := normalize(claims.UserDisplayName); display != "" && display != reader.DisplayName {
			updates["display_name"] = display
		}
		if err := s.db.WithContext(ctx).Model(&Reader{}).
			Where("provider = ? AND subject = ?", provider, subject).
			Updates(updates).Error; err != nil {
			return "", err
		}
	}

	readerID, err := reading.NewUserID(reader.ReaderID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	s.cache.Store(cacheKey, cachedReader{readerID: readerID, touched: now})
	return readerID, nil
}

// Known reports whether readerID belongs to a reader who signed in at least once.
func (s *Service) Known(ctx context.Context, readerID reading.UserID) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Reader{}).Where("reader_id = ?", readerID.String()).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func deriveProviderSubject(claims auth.SessionClaims) (string, string) {
	provider := defaultProvider
	subject := normalize(claims.Subject)

	if raw := normalize(claims.UserID); raw != "" {
		if head, tail, found := strings.Cut(raw, ":"); found && normalize(head) != "" && normalize(tail) != "" {
			provider = normalize(head)
			subject = normalize(tail)
		} else if subject == "" {
			subject = raw
		}
	}
	return provider, subject
}
