// Package auth implements login, the forgot-password flow and the HTTP
// surface around them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/oops"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Kyz7/hcg-auth/internal/logging"
	"github.com/Kyz7/hcg-auth/internal/models"
	"github.com/Kyz7/hcg-auth/internal/notify"
	"github.com/Kyz7/hcg-auth/internal/resettoken"
	"github.com/Kyz7/hcg-auth/internal/user"
	"github.com/Kyz7/hcg-auth/internal/utils"
)

const (
	MinPasswordLength = user.MinPasswordLength
	MaxPasswordBytes  = user.MaxPasswordBytes
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
	VerifyDummy(password string)
}

type Options struct {
	JWTSecret  []byte
	SessionTTL time.Duration
	// ExposeOTP returns the generated OTP to the caller of RequestReset.
	// Development only.
	ExposeOTP bool
}

// LoginResult is a signed session plus the public profile it was issued for.
type LoginResult struct {
	Token string
	User  models.PublicUser
}

// ResetRequest is the outcome of RequestReset. It looks the same whether or
// not the email matched an account; DebugOTP is only filled when ExposeOTP
// is on and a code was actually issued.
type ResetRequest struct {
	DebugOTP string
}

type Service struct {
	db       *gorm.DB
	users    *user.Store
	tokens   *resettoken.Store
	hasher   PasswordHasher
	notifier notify.Notifier
	log      *zap.Logger
	opts     Options
}

func NewService(
	db *gorm.DB,
	users *user.Store,
	tokens *resettoken.Store,
	hasher PasswordHasher,
	notifier notify.Notifier,
	log *zap.Logger,
	opts Options,
) *Service {
	return &Service{
		db:       db,
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		log:      log,
		opts:     opts,
	}
}

// Login checks a username and password and issues a session token. An
// unknown user and a wrong password fail identically.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	u, err := s.users.FindActiveByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.hasher.VerifyDummy(password)
			return nil, ErrInvalidCredentials
		}
		return nil, oops.Code("LOGIN_FAILED").With("operation", "FindActiveByUsername").Wrap(err)
	}

	ok, err := s.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		return nil, oops.Code("LOGIN_FAILED").With("operation", "Verify").With("user_id", u.ID).Wrap(err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if err := s.users.TouchLastLogin(ctx, u.ID); err != nil {
		s.log.Warn("could not record last login", logging.ErrorFields(err)...)
	}

	token, err := s.IssueSession(u)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: u.Public()}, nil
}

// IssueSession signs a session token for u.
func (s *Service) IssueSession(u *models.User) (string, error) {
	return utils.GenerateJWT(utils.SessionClaims{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
	}, s.opts.JWTSecret, s.opts.SessionTTL)
}

// Me returns the active user a session belongs to.
func (s *Service) Me(ctx context.Context, id uint) (*models.User, error) {
	return s.users.FindActiveByID(ctx, id)
}

// RequestReset issues a fresh OTP for the active account with this email,
// retiring any earlier code, and tries to deliver it. Unknown emails get the
// same answer as known ones.
func (s *Service) RequestReset(ctx context.Context, email string) (*ResetRequest, error) {
	if strings.TrimSpace(email) == "" {
		return nil, ErrEmailRequired
	}

	u, err := s.users.FindActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return &ResetRequest{}, nil
		}
		return nil, oops.Code("RESET_REQUEST_FAILED").With("operation", "FindActiveByEmail").Wrap(err)
	}

	var rt *models.ResetToken
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.users.WithTx(tx).LockActive(ctx, u.ID); err != nil {
			return err
		}
		tokens := s.tokens.WithTx(tx)
		if _, err := tokens.InvalidateUnused(ctx, u.ID); err != nil {
			return err
		}
		rt, err = tokens.Create(ctx, u.ID)
		return err
	})
	if err != nil {
		// Deactivated between the lookup and the lock.
		if errors.Is(err, user.ErrNotFound) {
			return &ResetRequest{}, nil
		}
		return nil, oops.Code("RESET_REQUEST_FAILED").With("user_id", u.ID).Wrap(err)
	}

	s.deliver(ctx, u, rt)

	out := &ResetRequest{}
	if s.opts.ExposeOTP {
		out.DebugOTP = rt.OTP
	}
	return out, nil
}

// deliver sends the OTP by email. When that fails for any reason the code
// goes to the operator log instead, so the request still succeeds.
func (s *Service) deliver(ctx context.Context, u *models.User, rt *models.ResetToken) {
	err := s.send(ctx, u, rt)
	if err == nil {
		s.log.Info("password reset code sent",
			zap.String("notifier", s.notifier.Name()),
			zap.Uint("user_id", u.ID),
		)
		return
	}

	fields := append(logging.ErrorFields(err),
		zap.String("email", u.Email),
		zap.String("otp", rt.OTP),
		zap.Time("expires_at", rt.ExpiresAt),
	)
	s.log.Warn("email delivery failed, use the OTP from this log entry", fields...)
}

func (s *Service) send(ctx context.Context, u *models.User, rt *models.ResetToken) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = oops.Code("DELIVERY_FAILED").With("panic", fmt.Sprint(r)).Errorf("notifier panicked")
		}
	}()

	msg, err := notify.ResetCodeMessage(u.Email, u.DisplayName(), rt.OTP, s.tokens.TTL())
	if err != nil {
		return err
	}
	return s.notifier.Send(ctx, msg)
}

// VerifyOTP exchanges a valid email and OTP pair for the opaque reset token.
// The token is not consumed, so verifying twice returns the same token.
func (s *Service) VerifyOTP(ctx context.Context, email, otp string) (string, error) {
	if !utils.IsOTP(otp) {
		return "", ErrInvalidOrExpiredOTP
	}

	rt, err := s.tokens.FindByEmailAndOTP(ctx, email, otp)
	if err != nil {
		if errors.Is(err, resettoken.ErrNotUsable) {
			return "", ErrInvalidOrExpiredOTP
		}
		return "", oops.Code("RESET_VERIFY_FAILED").Wrap(err)
	}
	return rt.Token, nil
}

// ResetPassword consumes the opaque token and sets the new password. The
// token flip and the password write commit together or not at all.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if utf8.RuneCountInString(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(newPassword) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	if token == "" {
		return ErrInvalidOrExpiredToken
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").With("operation", "Hash").Wrap(err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tokens := s.tokens.WithTx(tx)
		rt, err := tokens.FindByOpaqueToken(ctx, token)
		if err != nil {
			return err
		}
		if err := tokens.MarkUsed(ctx, rt.ID); err != nil {
			return err
		}
		return s.users.WithTx(tx).SetPasswordHash(ctx, rt.UserID, hash)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, resettoken.ErrNotUsable), errors.Is(err, user.ErrNotFound):
		return ErrInvalidOrExpiredToken
	default:
		return oops.Code("RESET_PASSWORD_FAILED").Wrap(err)
	}
}
