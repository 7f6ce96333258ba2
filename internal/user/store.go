package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/oops"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Kyz7/hcg-auth/internal/models"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrUserExists = errors.New("username or email already registered")
)

// Store is the credential store. Lookups only ever see active users, so an
// inactive account is indistinguishable from one that does not exist.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithTx returns a copy of the store that runs its queries on tx.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx, now: s.now}
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) active(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Where("is_active = ?", true)
}

func (s *Store) first(q *gorm.DB, op string) (*models.User, error) {
	var u models.User
	if err := q.First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, oops.Code("USER_QUERY_FAILED").With("operation", op).Wrap(err)
	}
	return &u, nil
}

func (s *Store) FindActiveByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.first(s.active(ctx).Where("username = ?", username), "FindActiveByUsername")
}

func (s *Store) FindActiveByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.first(s.active(ctx).Where("email = ?", NormalizeEmail(email)), "FindActiveByEmail")
}

func (s *Store) FindActiveByID(ctx context.Context, id uint) (*models.User, error) {
	return s.first(s.active(ctx).Where("id = ?", id), "FindActiveByID")
}

// LockActive loads an active user with a row lock held until the
// surrounding transaction ends. Concurrent reset requests for the same user
// queue here.
func (s *Store) LockActive(ctx context.Context, id uint) (*models.User, error) {
	q := s.active(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id)
	return s.first(q, "LockActive")
}

func (s *Store) SetPasswordHash(ctx context.Context, id uint, hash string) error {
	res := s.active(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"password_hash": hash, "updated_at": s.now()})
	if res.Error != nil {
		return oops.Code("USER_UPDATE_FAILED").With("operation", "SetPasswordHash").With("user_id", id).Wrap(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastLogin stamps last_login. Callers treat failure as non-fatal.
func (s *Store) TouchLastLogin(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login", s.now()).Error
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").With("operation", "TouchLastLogin").With("user_id", id).Wrap(err)
	}
	return nil
}

// Create inserts a provisioned user. The password must already be hashed.
func (s *Store) Create(ctx context.Context, u *models.User) error {
	u.Email = NormalizeEmail(u.Email)
	u.Username = strings.TrimSpace(u.Username)

	// is_active has a database default, so gorm would drop an explicit false.
	// The insert and the flip commit together.
	active := u.IsActive
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.User{}).
			Where("username = ? OR email = ?", u.Username, u.Email).
			Count(&count).Error
		if err != nil {
			return oops.Code("USER_QUERY_FAILED").With("operation", "Create").Wrap(err)
		}
		if count > 0 {
			return ErrUserExists
		}

		if err := tx.Create(u).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrUserExists
			}
			return oops.Code("USER_CREATE_FAILED").With("username", u.Username).Wrap(err)
		}
		if !active {
			return s.WithTx(tx).SetActive(ctx, u.ID, false)
		}
		return nil
	})
	if err != nil {
		return err
	}
	u.IsActive = active
	return nil
}

// List returns every user, active or not, for administrators.
func (s *Store) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").With("operation", "List").Wrap(err)
	}
	return users, nil
}

func (s *Store) SetActive(ctx context.Context, id uint, active bool) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": active, "updated_at": s.now()})
	if res.Error != nil {
		return oops.Code("USER_UPDATE_FAILED").With("operation", "SetActive").With("user_id", id).Wrap(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
