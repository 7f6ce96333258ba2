package server

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kyz7/hcg-auth/internal/auth"
	"github.com/Kyz7/hcg-auth/internal/response"
	"github.com/Kyz7/hcg-auth/internal/user"
)

// Deps is everything the HTTP layer needs, built once at startup.
type Deps struct {
	Auth        *auth.Handler
	Users       *user.Handler
	Google      *auth.GoogleAuth // nil when Google sign-in is not configured
	JWTSecret   []byte
	CORSOrigins []string
	Log         *zap.Logger
}

func New(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "hcg-auth",
		BodyLimit:             1 * 1024 * 1024,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(deps.Log),
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(requestLogger(deps.Log))
	// Without an allow-list only same-origin callers are served.
	if len(deps.CORSOrigins) > 0 {
		origins, credentials := strings.Join(deps.CORSOrigins, ","), true
		if slices.Contains(deps.CORSOrigins, "*") {
			origins, credentials = "*", false
		}
		app.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowCredentials: credentials,
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
			AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		}))
	}

	SetupRoutes(app, deps)

	return app
}

// errorHandler turns errors that escape handlers (unknown routes, panics,
// oversized bodies) into the standard error body.
func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code := "BAD_REQUEST"
			switch fe.Code {
			case fiber.StatusNotFound:
				code = "NOT_FOUND"
			case fiber.StatusMethodNotAllowed:
				code = "METHOD_NOT_ALLOWED"
			case fiber.StatusRequestEntityTooLarge:
				code = "PAYLOAD_TOO_LARGE"
			}
			if fe.Code < fiber.StatusInternalServerError {
				return response.Error(c, fe.Code, code, fe.Message, nil)
			}
		}

		log.Error("unhandled error",
			zap.Error(err),
			zap.String("path", c.Path()),
			zap.Any("request_id", c.Locals("requestid")),
		)
		return response.InternalError(c, "Server error. Please try again later.")
	}
}

func requestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		log.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
			zap.Any("request_id", c.Locals("requestid")),
		)
		return nil
	}
}
