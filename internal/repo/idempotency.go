package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipes-backend/internal/domain"
)

// IdempotencyStore remembers which resource a keyed create produced. Keys
// are scoped per user and route and replay until TTL elapses.
type IdempotencyStore struct {
	DB  *gorm.DB
	TTL time.Duration
	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

func (s IdempotencyStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Record stores the outcome of a keyed create. An expired record for the
// same (user, scope, key) is replaced; a live one returns ErrDuplicate.
func (s IdempotencyStore) Record(ctx context.Context, userID int64, scope, key string, resourceID int64, status int) error {
	now := s.now()
	db := s.DB.WithContext(ctx)
	err := db.Where(&domain.Idempotency{UserID: userID, Scope: scope, Key: key}).
		Where("expires_at <= ?", now).
		Delete(&domain.Idempotency{}).Error
	if err != nil {
		return err
	}
	err = db.Create(&domain.Idempotency{
		ID:         uuid.NewString(),
		UserID:     userID,
		Scope:      scope,
		Key:        key,
		ResourceID: resourceID,
		Status:     status,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.TTL),
	}).Error
	if err != nil && IsDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// Find returns the unexpired record for (userID, scope, key) at now, or
// ErrNotFound. Blank scopes and keys never match.
func (s IdempotencyStore) Find(ctx context.Context, userID int64, scope, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(scope) == "" || strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := s.DB.WithContext(ctx).
		Where(&domain.Idempotency{UserID: userID, Scope: scope, Key: key}).
		Where("expires_at > ?", now).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Lookup adapts Find to the replay middleware: a miss is not an error.
func (s IdempotencyStore) Lookup(ctx context.Context, userID int64, scope, key string, now time.Time) (int64, bool, error) {
	rec, err := s.Find(ctx, userID, scope, key, now)
	switch {
	case errors.Is(err, ErrNotFound):
		return 0, false, nil
	case err != nil:
		return 0, false, err
	}
	return rec.ResourceID, true, nil
}

// Purge deletes records that expired at or before now and returns the count.
func (s IdempotencyStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
