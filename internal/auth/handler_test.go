package auth_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"github.com/Kyz7/hcg-auth/internal/auth"
	"github.com/Kyz7/hcg-auth/internal/models"
	"github.com/Kyz7/hcg-auth/internal/notify"
	"github.com/Kyz7/hcg-auth/internal/resettoken"
	"github.com/Kyz7/hcg-auth/internal/server"
	"github.com/Kyz7/hcg-auth/internal/testutils"
	"github.com/Kyz7/hcg-auth/internal/user"
	"github.com/Kyz7/hcg-auth/internal/utils"
)

type testApp struct {
	app   *fiber.App
	db    *gorm.DB
	logs  *observer.ObservedLogs
	admin *models.User
	alice *models.User
}

func setupApp(t *testing.T, exposeOTP bool) *testApp {
	t.Helper()

	db := testutils.TestDB(t)
	admin := testutils.CreateTestUser(t, db, "admin", "admin@hcg.com", "admin123", user.RoleAdmin)
	alice := testutils.CreateTestUser(t, db, "alice", "alice@example.com", "oldpass1", user.RoleUser)

	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	users := user.NewStore(db)
	hasher := testutils.TestHasher()
	svc := auth.NewService(db, users, resettoken.NewStore(db, 10*time.Minute), hasher,
		notify.NewLogNotifier(log), log, auth.Options{
			JWTSecret:  []byte(testutils.TestJWTSecret),
			SessionTTL: time.Hour,
			ExposeOTP:  exposeOTP,
		})

	app := server.New(server.Deps{
		Auth:        auth.NewHandler(svc, log),
		Users:       user.NewHandler(user.NewService(users, hasher), log),
		JWTSecret:   []byte(testutils.TestJWTSecret),
		CORSOrigins: []string{"http://localhost:3000"},
		Log:         log,
	})

	return &testApp{app: app, db: db, logs: logs, admin: admin, alice: alice}
}

func (a *testApp) do(t *testing.T, method, url string, body interface{}, token string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := testutils.MakeRequest(a.app, method, url, body, token)
	require.NoError(t, err)
	return resp.Code, testutils.ParseResponse(t, resp)
}

func (a *testApp) otpFor(t *testing.T, userID uint) string {
	t.Helper()
	var rt models.ResetToken
	require.NoError(t, a.db.Where("user_id = ? AND is_used = ?", userID, false).First(&rt).Error)
	return rt.OTP
}

func TestLoginHandler(t *testing.T) {
	a := setupApp(t, false)

	t.Run("Success - Valid credentials", func(t *testing.T) {
		status, body := a.do(t, "POST", "/api/login", map[string]string{
			"username": "alice",
			"password": "oldpass1",
		}, "")
		assert.Equal(t, 200, status)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "Login successful", body["message"])
		assert.NotEmpty(t, body["token"])

		u, ok := body["user"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "alice", u["username"])
		assert.Equal(t, "alice@example.com", u["email"])
		assert.Equal(t, "Test User", u["fullName"])
		assert.Equal(t, "user", u["role"])
		assert.NotContains(t, u, "password_hash")
		assert.NotContains(t, u, "passwordHash")
	})

	t.Run("Error - Invalid credentials", func(t *testing.T) {
		status, body := a.do(t, "POST", "/api/login", map[string]string{
			"username": "alice",
			"password": "wrongpassword",
		}, "")
		assert.Equal(t, 401, status)
		assert.Equal(t, "INVALID_CREDENTIALS", body["code"])
		assert.Equal(t, "Invalid username or password", body["message"])
	})

	t.Run("Error - Unknown user matches wrong password", func(t *testing.T) {
		status, body := a.do(t, "POST", "/api/login", map[string]string{
			"username": "nobody",
			"password": "wrongpassword",
		}, "")
		assert.Equal(t, 401, status)
		assert.Equal(t, "Invalid username or password", body["message"])
	})

	t.Run("Error - Missing fields", func(t *testing.T) {
		status, body := a.do(t, "POST", "/api/login", map[string]string{"username": "alice"}, "")
		assert.Equal(t, 400, status)
		assert.Equal(t, "VALIDATION_ERROR", body["code"])
		assert.Equal(t, "Username and password are required", body["message"])
	})
}

func TestForgotPasswordHandler_SameAnswerForUnknownEmail(t *testing.T) {
	a := setupApp(t, false)

	knownStatus, known := a.do(t, "POST", "/api/forgot-password", map[string]string{"email": "alice@example.com"}, "")
	unknownStatus, unknown := a.do(t, "POST", "/api/forgot-password", map[string]string{"email": "ghost@example.com"}, "")

	assert.Equal(t, 200, knownStatus)
	assert.Equal(t, knownStatus, unknownStatus)
	assert.Equal(t, known, unknown)
	assert.Equal(t, "If your email exists, you will receive a reset code shortly.", known["message"])
	assert.NotContains(t, known, "otp")
}

func TestForgotPasswordHandler_DebugOTP(t *testing.T) {
	a := setupApp(t, true)

	status, body := a.do(t, "POST", "/api/forgot-password", map[string]string{"email": "alice@example.com"}, "")
	assert.Equal(t, 200, status)
	assert.Equal(t, a.otpFor(t, a.alice.ID), body["otp"])

	_, body = a.do(t, "POST", "/api/forgot-password", map[string]string{"email": "ghost@example.com"}, "")
	assert.NotContains(t, body, "otp")
}

func TestForgotPasswordHandler_MissingEmail(t *testing.T) {
	a := setupApp(t, false)
	status, body := a.do(t, "POST", "/api/forgot-password", map[string]string{}, "")
	assert.Equal(t, 400, status)
	assert.Equal(t, "Email is required", body["message"])
}

func TestResetFlowHandlers(t *testing.T) {
	a := setupApp(t, false)

	status, _ := a.do(t, "POST", "/api/forgot-password", map[string]string{"email": "alice@example.com"}, "")
	require.Equal(t, 200, status)
	otp := a.otpFor(t, a.alice.ID)

	t.Run("verify with wrong otp", func(t *testing.T) {
		wrong := "999999"
		if otp == wrong {
			wrong = "999998"
		}
		status, body := a.do(t, "POST", "/api/verify-otp", map[string]string{
			"email": "alice@example.com", "otp": wrong,
		}, "")
		assert.Equal(t, 400, status)
		assert.Equal(t, "Invalid or expired OTP", body["message"])
		assert.Equal(t, "RESET_INVALID_OR_EXPIRED", body["code"])
	})

	t.Run("verify missing fields", func(t *testing.T) {
		status, body := a.do(t, "POST", "/api/verify-otp", map[string]string{"email": "alice@example.com"}, "")
		assert.Equal(t, 400, status)
		assert.Equal(t, "VALIDATION_ERROR", body["code"])
	})

	status, body := a.do(t, "POST", "/api/verify-otp", map[string]string{
		"email": "alice@example.com", "otp": otp,
	}, "")
	require.Equal(t, 200, status)
	resetToken, _ := body["resetToken"].(string)
	require.NotEmpty(t, resetToken)

	t.Run("short password", func(t *testing.T) {
		status, body := a.do(t, "POST", "/api/reset-password", map[string]string{
			"resetToken": resetToken, "newPassword": "abc",
		}, "")
		assert.Equal(t, 400, status)
		assert.Equal(t, "PASSWORD_TOO_SHORT", body["code"])
		assert.Equal(t, "Password must be at least 6 characters", body["message"])
	})

	t.Run("password longer than bcrypt accepts", func(t *testing.T) {
		status, body := a.do(t, "POST", "/api/reset-password", map[string]string{
			"resetToken": resetToken, "newPassword": strings.Repeat("a", 73),
		}, "")
		assert.Equal(t, 400, status)
		assert.Equal(t, "PASSWORD_TOO_LONG", body["code"])
	})

	t.Run("missing fields", func(t *testing.T) {
		status, body := a.do(t, "POST", "/api/reset-password", map[string]string{"resetToken": resetToken}, "")
		assert.Equal(t, 400, status)
		assert.Equal(t, "Reset token and new password are required", body["message"])
	})

	t.Run("otp is not accepted as reset token", func(t *testing.T) {
		status, body := a.do(t, "POST", "/api/reset-password", map[string]string{
			"resetToken": otp, "newPassword": "newpass123",
		}, "")
		assert.Equal(t, 400, status)
		assert.Equal(t, "Invalid or expired reset token", body["message"])
	})

	status, body = a.do(t, "POST", "/api/reset-password", map[string]string{
		"resetToken": resetToken, "newPassword": "newpass123",
	}, "")
	require.Equal(t, 200, status)
	assert.Equal(t, "Password reset successfully", body["message"])

	t.Run("token is single use", func(t *testing.T) {
		status, body := a.do(t, "POST", "/api/reset-password", map[string]string{
			"resetToken": resetToken, "newPassword": "third-pass",
		}, "")
		assert.Equal(t, 400, status)
		assert.Equal(t, "Invalid or expired reset token", body["message"])
	})

	t.Run("login uses the new password", func(t *testing.T) {
		status, _ := a.do(t, "POST", "/api/login", map[string]string{"username": "alice", "password": "oldpass1"}, "")
		assert.Equal(t, 401, status)
		status, _ = a.do(t, "POST", "/api/login", map[string]string{"username": "alice", "password": "newpass123"}, "")
		assert.Equal(t, 200, status)
	})
}

func TestProtectedRoutes(t *testing.T) {
	a := setupApp(t, false)
	secret := []byte(testutils.TestJWTSecret)
	aliceToken := testutils.GetAuthToken(t, a.alice, testutils.TestJWTSecret)
	adminToken := testutils.GetAuthToken(t, a.admin, testutils.TestJWTSecret)

	expired, err := utils.GenerateJWT(utils.SessionClaims{ID: a.alice.ID, Username: "alice", Role: "user"}, secret, -time.Minute)
	require.NoError(t, err)
	foreign, err := utils.GenerateJWT(utils.SessionClaims{ID: a.alice.ID, Username: "alice", Role: "admin"},
		[]byte("some-other-secret-that-is-also-long-enough"), time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		url    string
		token  string
		status int
		code   string
	}{
		{"no token", "/api/protected", "", 401, "UNAUTHORIZED"},
		{"garbage token", "/api/protected", "not.a.jwt", 401, "TOKEN_MALFORMED"},
		{"expired token", "/api/protected", expired, 401, "TOKEN_EXPIRED"},
		{"foreign signature", "/api/protected", foreign, 401, "TOKEN_SIGNATURE_INVALID"},
		{"valid token", "/api/protected", aliceToken, 200, ""},
		{"admin route as user", "/api/admin/ping", aliceToken, 403, "FORBIDDEN"},
		{"admin route as admin", "/api/admin/ping", adminToken, 200, ""},
		{"me", "/api/me", aliceToken, 200, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := a.do(t, "GET", tt.url, nil, tt.token)
			assert.Equal(t, tt.status, status)
			if tt.code != "" {
				assert.Equal(t, tt.code, body["code"])
			} else {
				assert.Equal(t, true, body["success"])
			}
		})
	}

	t.Run("protected echoes claims", func(t *testing.T) {
		_, body := a.do(t, "GET", "/api/protected", nil, aliceToken)
		u := body["user"].(map[string]interface{})
		assert.Equal(t, "alice", u["username"])
		assert.Equal(t, "user", u["role"])
	})

	t.Run("malformed authorization header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/protected", nil)
		req.Header.Set("Authorization", "Token "+aliceToken)
		resp, err := a.app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, 401, resp.StatusCode)
	})

	t.Run("me after deactivation", func(t *testing.T) {
		testutils.DeactivateUser(t, a.db, a.alice.ID)
		status, _ := a.do(t, "GET", "/api/me", nil, aliceToken)
		assert.Equal(t, 401, status)
	})
}

func TestHealthAndFallbacks(t *testing.T) {
	a := setupApp(t, false)

	status, body := a.do(t, "GET", "/api/health", nil, "")
	assert.Equal(t, 200, status)
	assert.Equal(t, "Server Running", body["status"])
	_, err := time.Parse(time.RFC3339, body["timestamp"].(string))
	assert.NoError(t, err)

	status, body = a.do(t, "GET", "/api/does-not-exist", nil, "")
	assert.Equal(t, 404, status)
	assert.Equal(t, "NOT_FOUND", body["code"])

	status, _ = a.do(t, "GET", "/api/auth/google/login", nil, "")
	assert.Equal(t, 404, status, "google routes are off unless configured")
}

func TestServerCORSOrigins(t *testing.T) {
	db := testutils.TestDB(t)
	log := zap.NewNop()
	users := user.NewStore(db)
	hasher := testutils.TestHasher()
	svc := auth.NewService(db, users, resettoken.NewStore(db, 10*time.Minute), hasher,
		notify.NewLogNotifier(log), log, auth.Options{JWTSecret: []byte(testutils.TestJWTSecret), SessionTTL: time.Hour})

	newApp := func(origins []string) *fiber.App {
		return server.New(server.Deps{
			Auth:        auth.NewHandler(svc, log),
			Users:       user.NewHandler(user.NewService(users, hasher), log),
			JWTSecret:   []byte(testutils.TestJWTSecret),
			CORSOrigins: origins,
			Log:         log,
		})
	}

	tests := []struct {
		name        string
		origins     []string
		allowOrigin string
	}{
		{"allow-list", []string{"http://localhost:3000"}, "http://localhost:3000"},
		{"empty list serves same origin only", nil, ""},
		{"wildcard drops credentials", []string{"*"}, "*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var app *fiber.App
			require.NotPanics(t, func() { app = newApp(tt.origins) })

			req := httptest.NewRequest("GET", "/api/health", nil)
			req.Header.Set("Origin", "http://localhost:3000")
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, 200, resp.StatusCode)
			assert.Equal(t, tt.allowOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestUserAdminHandlers(t *testing.T) {
	a := setupApp(t, false)
	adminToken := testutils.GetAuthToken(t, a.admin, testutils.TestJWTSecret)
	aliceToken := testutils.GetAuthToken(t, a.alice, testutils.TestJWTSecret)

	newUser := map[string]interface{}{
		"username": "bob",
		"email":    "Bob@Example.com",
		"password": "bobpass1",
		"fullName": "Bob Builder",
	}

	t.Run("non-admin is forbidden", func(t *testing.T) {
		status, _ := a.do(t, "POST", "/api/users", newUser, aliceToken)
		assert.Equal(t, 403, status)
	})

	t.Run("create", func(t *testing.T) {
		status, body := a.do(t, "POST", "/api/users", newUser, adminToken)
		assert.Equal(t, 201, status)
		u := body["user"].(map[string]interface{})
		assert.Equal(t, "bob@example.com", u["email"])
		assert.Equal(t, "user", u["role"])
		assert.Equal(t, true, u["isActive"])
		assert.NotContains(t, u, "password_hash")
	})

	t.Run("duplicate", func(t *testing.T) {
		status, body := a.do(t, "POST", "/api/users", newUser, adminToken)
		assert.Equal(t, 409, status)
		assert.Equal(t, "CONFLICT", body["code"])
	})

	t.Run("invalid", func(t *testing.T) {
		status, body := a.do(t, "POST", "/api/users", map[string]interface{}{
			"username": "x", "email": "not-an-email", "password": "123", "role": "root",
		}, adminToken)
		assert.Equal(t, 400, status)
		details := body["details"].(map[string]interface{})
		assert.Contains(t, details, "email")
		assert.Contains(t, details, "password")
		assert.Contains(t, details, "role")
	})

	t.Run("password too long", func(t *testing.T) {
		status, body := a.do(t, "POST", "/api/users", map[string]interface{}{
			"username": "carol", "email": "carol@example.com", "password": strings.Repeat("p", 73),
		}, adminToken)
		assert.Equal(t, 400, status)
		assert.Equal(t, "VALIDATION_ERROR", body["code"])
		details := body["details"].(map[string]interface{})
		assert.Contains(t, details, "password")
	})

	t.Run("list", func(t *testing.T) {
		status, body := a.do(t, "GET", "/api/users", nil, adminToken)
		assert.Equal(t, 200, status)
		assert.EqualValues(t, 3, body["total"])
	})

	t.Run("deactivate then login fails", func(t *testing.T) {
		status, _ := a.do(t, "PUT", "/api/users/"+uintToString(a.alice.ID)+"/status",
			map[string]interface{}{"isActive": false}, adminToken)
		assert.Equal(t, 200, status)

		status, _ = a.do(t, "POST", "/api/login", map[string]string{"username": "alice", "password": "oldpass1"}, "")
		assert.Equal(t, 401, status)
	})

	t.Run("status of missing user", func(t *testing.T) {
		status, _ := a.do(t, "PUT", "/api/users/9999/status", map[string]interface{}{"isActive": true}, adminToken)
		assert.Equal(t, 404, status)
	})

	t.Run("status requires isActive", func(t *testing.T) {
		status, _ := a.do(t, "PUT", "/api/users/1/status", map[string]interface{}{}, adminToken)
		assert.Equal(t, 400, status)
	})
}
