package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Kyz7/hcg-auth/internal/logging"
	"github.com/Kyz7/hcg-auth/internal/response"
)

const resetRequestedMessage = "If your email exists, you will receive a reset code shortly."

type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// fail writes the public form of err. Internal errors are logged with their
// context and reported generically.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	p := Classify(err)
	if p.Status >= fiber.StatusInternalServerError {
		logging.LogError(h.log, "request failed", err,
			zap.String("route", c.Route().Path),
			zap.Any("request_id", c.Locals("requestid")),
		)
	}
	return response.Error(c, p.Status, p.Code, p.Message, nil)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", nil)
	}
	body.Username = strings.TrimSpace(body.Username)
	if body.Username == "" || body.Password == "" {
		return response.ValidationError(c, "Username and password are required", nil)
	}

	res, err := h.svc.Login(c.UserContext(), body.Username, body.Password)
	if err != nil {
		return h.fail(c, err)
	}

	return response.Success(c, "Login successful", fiber.Map{
		"token": res.Token,
		"user":  res.User,
	})
}

func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", nil)
	}
	if strings.TrimSpace(body.Email) == "" {
		return response.ValidationError(c, "Email is required", nil)
	}

	res, err := h.svc.RequestReset(c.UserContext(), body.Email)
	if err != nil {
		return h.fail(c, err)
	}

	fields := fiber.Map{}
	if res.DebugOTP != "" {
		fields["otp"] = res.DebugOTP
	}
	return response.Success(c, resetRequestedMessage, fields)
}

func (h *Handler) VerifyOTP(c *fiber.Ctx) error {
	var body struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", nil)
	}
	body.OTP = strings.TrimSpace(body.OTP)
	if strings.TrimSpace(body.Email) == "" || body.OTP == "" {
		return response.ValidationError(c, "Email and OTP are required", nil)
	}

	token, err := h.svc.VerifyOTP(c.UserContext(), body.Email, body.OTP)
	if err != nil {
		return h.fail(c, err)
	}

	return response.Success(c, "OTP verified successfully", fiber.Map{
		"resetToken": token,
	})
}

func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var body struct {
		ResetToken  string `json:"resetToken"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", nil)
	}
	if body.ResetToken == "" || body.NewPassword == "" {
		return response.ValidationError(c, "Reset token and new password are required", nil)
	}

	if err := h.svc.ResetPassword(c.UserContext(), body.ResetToken, body.NewPassword); err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, "Password reset successfully", nil)
}

// Protected echoes the verified session claims.
func (h *Handler) Protected(c *fiber.Ctx) error {
	claims, ok := ClaimsFrom(c)
	if !ok {
		return response.Unauthorized(c, "UNAUTHORIZED", "Access denied. No token provided.")
	}
	return response.Success(c, "This is protected data", fiber.Map{
		"user": fiber.Map{
			"id":       claims.ID,
			"username": claims.Username,
			"role":     claims.Role,
		},
	})
}

// Me returns the profile of the signed-in user, re-read from the store so a
// deactivated account stops working immediately.
func (h *Handler) Me(c *fiber.Ctx) error {
	claims, ok := ClaimsFrom(c)
	if !ok {
		return response.Unauthorized(c, "UNAUTHORIZED", "Access denied. No token provided.")
	}

	u, err := h.svc.Me(c.UserContext(), claims.ID)
	if err != nil {
		if isNotFound(err) {
			return response.Unauthorized(c, "UNAUTHORIZED", "Account is no longer active")
		}
		return h.fail(c, err)
	}
	return response.Success(c, "OK", fiber.Map{"user": u.Public()})
}

func (h *Handler) AdminPing(c *fiber.Ctx) error {
	return response.Success(c, "pong", fiber.Map{"time": time.Now().UTC().Format(time.RFC3339)})
}
