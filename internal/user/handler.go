package user

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Kyz7/hcg-auth/internal/logging"
	"github.com/Kyz7/hcg-auth/internal/response"
)

// Handler exposes account administration to admins.
type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) CreateUser(c *fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"fullName"`
		Role     string `json:"role"`
		IsActive *bool  `json:"isActive"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", nil)
	}

	in := NewUser{
		Username: body.Username,
		Email:    body.Email,
		Password: body.Password,
		FullName: body.FullName,
		Role:     body.Role,
		Inactive: body.IsActive != nil && !*body.IsActive,
	}
	if problems := in.Validate(); len(problems) > 0 {
		return response.ValidationError(c, "Invalid user data", problems)
	}

	u, err := h.svc.Provision(c.UserContext(), in)
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			return response.Conflict(c, "Username or email already registered")
		}
		logging.LogError(h.log, "create user failed", err)
		return response.InternalError(c, "Failed to create user")
	}

	return response.Created(c, "User created successfully", fiber.Map{"user": u})
}

func (h *Handler) ListUsers(c *fiber.Ctx) error {
	users, err := h.svc.List(c.UserContext())
	if err != nil {
		logging.LogError(h.log, "list users failed", err)
		return response.InternalError(c, "Failed to fetch users")
	}
	return response.Success(c, "Users retrieved successfully", fiber.Map{
		"users": users,
		"total": len(users),
	})
}

func (h *Handler) SetStatus(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return response.BadRequest(c, "Invalid user ID", nil)
	}

	var body struct {
		IsActive *bool `json:"isActive"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", nil)
	}
	if body.IsActive == nil {
		return response.ValidationError(c, "isActive is required", nil)
	}

	if err := h.svc.SetActive(c.UserContext(), uint(id), *body.IsActive); err != nil {
		if errors.Is(err, ErrNotFound) {
			return response.NotFound(c, "User")
		}
		logging.LogError(h.log, "update user status failed", err)
		return response.InternalError(c, "Failed to update user")
	}

	return response.Success(c, "User status updated", fiber.Map{
		"id":       id,
		"isActive": *body.IsActive,
	})
}
