package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/samber/oops"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/Kyz7/hcg-auth/internal/logging"
	"github.com/Kyz7/hcg-auth/internal/response"
	"github.com/Kyz7/hcg-auth/internal/user"
)

const (
	GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

	stateAudience = "google-oauth-state"
	stateTTL      = 5 * time.Minute
)

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Endpoint and UserInfoURL default to Google's.
	Endpoint    oauth2.Endpoint
	UserInfoURL string
}

// GoogleAuth signs in existing active users whose Google email matches.
// The OAuth state is a short-lived signed token, so no server-side state is
// kept between the redirect and the callback.
type GoogleAuth struct {
	oauth       *oauth2.Config
	userInfoURL string
	stateKey    []byte
	svc         *Service
	users       *user.Store
	log         *zap.Logger
	now         func() time.Time
}

func NewGoogleAuth(cfg GoogleConfig, svc *Service, users *user.Store, log *zap.Logger) *GoogleAuth {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = google.Endpoint
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = GoogleUserInfoURL
	}

	// Derived so a state token can never pass as a session token.
	mac := hmac.New(sha256.New, svc.opts.JWTSecret)
	mac.Write([]byte(stateAudience))

	return &GoogleAuth{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: endpoint,
		},
		userInfoURL: userInfoURL,
		stateKey:    mac.Sum(nil),
		svc:         svc,
		users:       users,
		log:         log,
		now:         time.Now,
	}
}

func (g *GoogleAuth) newState() (string, error) {
	now := g.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Audience:  jwt.ClaimStrings{stateAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.stateKey)
	if err != nil {
		return "", oops.Code("OAUTH_STATE_FAILED").Wrap(err)
	}
	return signed, nil
}

func (g *GoogleAuth) validState(state string) bool {
	if state == "" {
		return false
	}
	_, err := jwt.ParseWithClaims(state, &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
		return g.stateKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(stateAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	return err == nil
}

func (g *GoogleAuth) Login(c *fiber.Ctx) error {
	state, err := g.newState()
	if err != nil {
		logging.LogError(g.log, "oauth state failed", err)
		return response.InternalError(c, "Server error. Please try again later.")
	}
	return c.Redirect(g.oauth.AuthCodeURL(state), fiber.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func (g *GoogleAuth) Callback(c *fiber.Ctx) error {
	if !g.validState(c.Query("state")) {
		return response.BadRequest(c, "Invalid state parameter", nil)
	}
	code := c.Query("code")
	if code == "" {
		return response.BadRequest(c, "Missing authorization code", nil)
	}

	ctx := c.UserContext()
	info, err := g.fetchUserInfo(ctx, code)
	if err != nil {
		logging.LogError(g.log, "google sign-in failed", err)
		return response.Error(c, fiber.StatusBadGateway, "OAUTH_FAILED", "Google sign-in failed", nil)
	}
	if info.Email == "" || !info.VerifiedEmail {
		return response.Unauthorized(c, "INVALID_CREDENTIALS", "Google account email is not verified")
	}

	u, err := g.users.FindActiveByEmail(ctx, info.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return response.Unauthorized(c, "INVALID_CREDENTIALS", "No active account for this Google email")
		}
		logging.LogError(g.log, "google sign-in lookup failed", err)
		return response.InternalError(c, "Server error. Please try again later.")
	}

	if err := g.users.TouchLastLogin(ctx, u.ID); err != nil {
		g.log.Warn("could not record last login", logging.ErrorFields(err)...)
	}

	token, err := g.svc.IssueSession(u)
	if err != nil {
		logging.LogError(g.log, "session signing failed", err)
		return response.InternalError(c, "Server error. Please try again later.")
	}

	return response.Success(c, "Login successful", fiber.Map{
		"token": token,
		"user":  u.Public(),
	})
}

func (g *GoogleAuth) fetchUserInfo(ctx context.Context, code string) (*googleUserInfo, error) {
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, oops.Code("OAUTH_FAILED").With("stage", "exchange").Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, oops.Code("OAUTH_FAILED").With("stage", "userinfo").Wrap(err)
	}
	resp, err := g.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, oops.Code("OAUTH_FAILED").With("stage", "userinfo").Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, oops.Code("OAUTH_FAILED").With("stage", "userinfo").
			Errorf("userinfo returned %s", resp.Status)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, oops.Code("OAUTH_FAILED").With("stage", "decode").Wrap(fmt.Errorf("decode userinfo: %w", err))
	}
	return &info, nil
}
