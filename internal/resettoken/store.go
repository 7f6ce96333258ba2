// Package resettoken persists forgot-password tokens. A token is usable only
// while it is unused and unexpired; every query re-checks both columns
// instead of trusting an earlier read.
package resettoken

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
	"gorm.io/gorm"

	"github.com/Kyz7/hcg-auth/internal/models"
	"github.com/Kyz7/hcg-auth/internal/user"
	"github.com/Kyz7/hcg-auth/internal/utils"
)

const DefaultTTL = 10 * time.Minute

// ErrNotUsable covers missing, expired and already used tokens alike.
var ErrNotUsable = errors.New("reset token is invalid or expired")

type Store struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewStore(db *gorm.DB, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{db: db, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// WithTx returns a copy of the store that runs its queries on tx.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx, ttl: s.ttl, now: s.now}
}

// WithClock returns a copy of the store that reads the time from now.
func (s *Store) WithClock(now func() time.Time) *Store {
	return &Store{db: s.db, ttl: s.ttl, now: now}
}

func (s *Store) TTL() time.Duration {
	return s.ttl
}

// InvalidateUnused retires every unused token of the user and reports how
// many it touched. Must run before Create in the same transaction.
func (s *Store) InvalidateUnused(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.ResetToken{}).
		Where("user_id = ? AND is_used = ?", userID, false).
		Updates(map[string]any{"is_used": true, "used_at": s.now()})
	if res.Error != nil {
		return 0, oops.Code("RESET_INVALIDATE_FAILED").With("user_id", userID).Wrap(res.Error)
	}
	return res.RowsAffected, nil
}

// Create issues a fresh OTP and opaque token for the user.
func (s *Store) Create(ctx context.Context, userID uint) (*models.ResetToken, error) {
	otp, err := utils.GenerateOTP()
	if err != nil {
		return nil, err
	}
	token, err := utils.GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	rt := &models.ResetToken{
		UserID:    userID,
		Token:     token,
		OTP:       otp,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(rt).Error; err != nil {
		return nil, oops.Code("RESET_CREATE_FAILED").With("user_id", userID).Wrap(err)
	}
	return rt, nil
}

func (s *Store) usable(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&models.ResetToken{}).
		Select("password_reset_tokens.*").
		Joins("JOIN users ON users.id = password_reset_tokens.user_id").
		Where("users.is_active = ?", true).
		Where("password_reset_tokens.is_used = ?", false).
		Where("password_reset_tokens.expires_at > ?", s.now())
}

func (s *Store) first(q *gorm.DB, op string) (*models.ResetToken, error) {
	var rt models.ResetToken
	if err := q.Order("password_reset_tokens.id DESC").Take(&rt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotUsable
		}
		return nil, oops.Code("RESET_QUERY_FAILED").With("operation", op).Wrap(err)
	}
	return &rt, nil
}

// FindByEmailAndOTP backs the verify step.
func (s *Store) FindByEmailAndOTP(ctx context.Context, email, otp string) (*models.ResetToken, error) {
	q := s.usable(ctx).
		Where("users.email = ?", user.NormalizeEmail(email)).
		Where("password_reset_tokens.otp = ?", otp)
	return s.first(q, "FindByEmailAndOTP")
}

// FindByOpaqueToken backs the consume step. The OTP is deliberately not an
// input here.
func (s *Store) FindByOpaqueToken(ctx context.Context, token string) (*models.ResetToken, error) {
	q := s.usable(ctx).Where("password_reset_tokens.token = ?", token)
	return s.first(q, "FindByOpaqueToken")
}

// MarkUsed flips the token to used only if it is still usable. Losing a
// race against another consumer yields ErrNotUsable.
func (s *Store) MarkUsed(ctx context.Context, id uint) error {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.ResetToken{}).
		Where("id = ? AND is_used = ? AND expires_at > ?", id, false, now).
		Updates(map[string]any{"is_used": true, "used_at": now})
	if res.Error != nil {
		return oops.Code("RESET_MARK_USED_FAILED").With("token_id", id).Wrap(res.Error)
	}
	if res.RowsAffected != 1 {
		return ErrNotUsable
	}
	return nil
}

// CountUnused reports how many unused tokens the user has.
func (s *Store) CountUnused(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.ResetToken{}).
		Where("user_id = ? AND is_used = ?", userID, false).
		Count(&n).Error
	if err != nil {
		return 0, oops.Code("RESET_QUERY_FAILED").With("operation", "CountUnused").Wrap(err)
	}
	return n, nil
}

// DeleteExpired removes tokens that expired more than retention ago.
func (s *Store) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention)
	res := s.db.WithContext(ctx).Where("expires_at < ?", cutoff).Delete(&models.ResetToken{})
	if res.Error != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").Wrap(res.Error)
	}
	return res.RowsAffected, nil
}
