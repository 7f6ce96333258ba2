package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Kyz7/hcg-auth/internal/database"
	"github.com/Kyz7/hcg-auth/internal/models"
	"github.com/Kyz7/hcg-auth/internal/user"
	"github.com/Kyz7/hcg-auth/internal/utils"
)

// TestJWTSecret is long enough to pass config validation in tests that
// build their own config.
const TestJWTSecret = "unit-test-secret-that-is-long-enough-0123456789"

// TestDB returns a migrated in-memory database. A single connection keeps
// every query on the same memory database and serializes transactions.
func TestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	require.NoError(t, err, "Failed to create test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(context.Background(), db), "Failed to migrate test database")
	return db
}

// TestHasher uses the minimum bcrypt cost so tests stay fast.
func TestHasher() *utils.PasswordHasher {
	return utils.NewPasswordHasher(bcrypt.MinCost)
}

// CreateTestUser provisions an active user with the given plaintext password.
func CreateTestUser(t *testing.T, db *gorm.DB, username, email, password, role string) *models.User {
	t.Helper()

	svc := user.NewService(user.NewStore(db), TestHasher())
	u, err := svc.Provision(context.Background(), user.NewUser{
		Username: username,
		Email:    email,
		Password: password,
		FullName: "Test User",
		Role:     role,
	})
	require.NoError(t, err, "Failed to create test user")
	return u
}

// DeactivateUser flips is_active off behind the store's back.
func DeactivateUser(t *testing.T, db *gorm.DB, id uint) {
	t.Helper()
	require.NoError(t, user.NewStore(db).SetActive(context.Background(), id, false))
}

func GetAuthToken(t *testing.T, u *models.User, secret string) string {
	t.Helper()
	token, err := utils.GenerateJWT(utils.SessionClaims{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
	}, []byte(secret), time.Hour)
	require.NoError(t, err, "Failed to generate test token")
	return token
}

func MakeRequest(app *fiber.App, method, url string, body interface{}, token string) (*httptest.ResponseRecorder, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req := httptest.NewRequest(method, url, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	resp, err := app.Test(req, -1)
	if err != nil {
		return rec, err
	}

	rec.Code = resp.StatusCode
	for k, v := range resp.Header {
		for _, val := range v {
			rec.Header().Add(k, val)
		}
	}
	_, _ = io.Copy(rec.Body, resp.Body)
	resp.Body.Close()

	return rec, nil
}

// ParseResponse decodes the body into a generic map.
func ParseResponse(t *testing.T, resp *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	out := map[string]interface{}{}
	if resp.Body.Len() == 0 {
		t.Log("Warning: Response body is empty")
		return out
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Logf("Response body: %s", resp.Body.String())
		assert.NoError(t, err, "Failed to parse response")
	}
	return out
}

func AssertSuccess(t *testing.T, resp *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	body := ParseResponse(t, resp)
	assert.Equal(t, true, body["success"], "Expected success response")
	assert.NotContains(t, body, "code", "Expected no error code")
	return body
}

func AssertError(t *testing.T, resp *httptest.ResponseRecorder, status int, expectedCode string) map[string]interface{} {
	t.Helper()
	assert.Equal(t, status, resp.Code)
	body := ParseResponse(t, resp)
	assert.Equal(t, false, body["success"], "Expected error response")
	assert.Equal(t, expectedCode, body["code"], "Error code mismatch")
	return body
}
