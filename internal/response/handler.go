package response

import (
	"github.com/gofiber/fiber/v2"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Success writes {success: true, message, ...fields}. Fields sit at the top
// level next to success and message.
func Success(c *fiber.Ctx, message string, fields fiber.Map) error {
	return c.JSON(envelope(message, fields))
}

func Created(c *fiber.Ctx, message string, fields fiber.Map) error {
	return c.Status(fiber.StatusCreated).JSON(envelope(message, fields))
}

func envelope(message string, fields fiber.Map) fiber.Map {
	body := fiber.Map{"success": true, "message": message}
	for k, v := range fields {
		if k == "success" || k == "message" {
			continue
		}
		body[k] = v
	}
	return body
}

func Error(c *fiber.Ctx, statusCode int, errorCode string, message string, details interface{}) error {
	return c.Status(statusCode).JSON(ErrorResponse{
		Success: false,
		Code:    errorCode,
		Message: message,
		Details: details,
	})
}

func BadRequest(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, "BAD_REQUEST", message, details)
}

func ValidationError(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, "VALIDATION_ERROR", message, details)
}

func Unauthorized(c *fiber.Ctx, code, message string) error {
	return Error(c, fiber.StatusUnauthorized, code, message, nil)
}

func Forbidden(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusForbidden, "FORBIDDEN", message, nil)
}

func NotFound(c *fiber.Ctx, resource string) error {
	return Error(c, fiber.StatusNotFound, "NOT_FOUND", resource+" not found", nil)
}

func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, "CONFLICT", message, nil)
}

func InternalError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", message, nil)
}
