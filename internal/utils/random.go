package utils

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
	"strconv"

	"github.com/samber/oops"
)

const (
	otpMin = 100000
	otpMax = 999999

	// OpaqueTokenBytes is 256 bits of entropy.
	OpaqueTokenBytes = 32
)

// GenerateOTP returns a uniformly random six digit code without a leading zero.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", oops.Code("OTP_GENERATE_FAILED").Wrap(err)
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}

// GenerateOpaqueToken returns OpaqueTokenBytes random bytes as unpadded
// base64url text.
func GenerateOpaqueToken() (string, error) {
	b := make([]byte, OpaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// IsOTP reports whether s has the shape of a generated OTP.
func IsOTP(s string) bool {
	if len(s) != 6 {
		return false
	}
	n, err := strconv.Atoi(s)
	return err == nil && n >= otpMin && n <= otpMax
}
