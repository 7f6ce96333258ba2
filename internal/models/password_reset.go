package models

import (
	"time"
)

// ResetToken is one forgot-password attempt. OTP is the short code mailed
// to the user; Token is the opaque secret released after the OTP checks out.
// The partial unique index on (user_id) WHERE is_used = false is created by
// the SQL migrations.
type ResetToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	Token     string     `gorm:"size:128;not null;uniqueIndex" json:"-"`
	OTP       string     `gorm:"column:otp;size:6;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
	IsUsed    bool       `gorm:"not null;default:false" json:"is_used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (ResetToken) TableName() string {
	return "password_reset_tokens"
}

// Usable reports whether the token can still be verified or consumed at now.
func (r *ResetToken) Usable(now time.Time) bool {
	return !r.IsUsed && r.ExpiresAt.After(now)
}
