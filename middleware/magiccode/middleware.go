package magiccode

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/magiccode/services/magiccode"
)

// DefaultHeaderName is the request header the code value is read from.
const DefaultHeaderName = "X-Verification-Magic-Code"

// ContextKey is where the middleware stores the verification result on
// the echo context.
const ContextKey = "magiccode.result"

type Config struct {
	// Service runs the verification. Required.
	Service *magiccode.Service

	// Operation the protected route requires a code for. Required.
	Operation string

	// Mode defaults to operation-mode verification.
	Mode magiccode.Mode

	// HeaderName defaults to DefaultHeaderName.
	HeaderName string

	// UserResolver extracts the acting user from the request. Required.
	UserResolver func(c echo.Context) (uint, error)

	// ClientResolver extracts the client the code is bound to. When nil
	// the service resolves the default client.
	ClientResolver func(c echo.Context) (uint, error)

	// EmailResolver extracts an explicit email. When nil the user's
	// directory address applies.
	EmailResolver func(c echo.Context) (string, error)

	// OnMissing handles requests without the code header.
	OnMissing func(c echo.Context) error

	// OnFailure handles non-success verification results.
	OnFailure func(c echo.Context, result magiccode.Result) error
}

// Middleware gates a route on a valid magic code supplied in a request
// header. The verification result is stored on the context under
// ContextKey before any handler or failure hook runs.
func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.Mode == 0 {
		cfg.Mode = magiccode.ModeOperation
	}

	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}

	if cfg.OnMissing == nil {
		cfg.OnMissing = DefaultOnMissing
	}

	if cfg.OnFailure == nil {
		cfg.OnFailure = DefaultOnFailure
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			value := c.Request().Header.Get(cfg.HeaderName)
			if value == "" {
				return cfg.OnMissing(c)
			}

			userID, err := cfg.UserResolver(c)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "unable to resolve user")
			}

			var clientID uint
			if cfg.ClientResolver != nil {
				clientID, err = cfg.ClientResolver(c)
				if err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "unable to resolve client")
				}
			}

			var email string
			if cfg.EmailResolver != nil {
				email, err = cfg.EmailResolver(c)
				if err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "unable to resolve email")
				}
			}

			result, err := cfg.Service.Verify(value, cfg.Operation, cfg.Mode, userID, clientID, email, c.RealIP())
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "verification failed")
			}

			c.Set(ContextKey, result)

			if result != magiccode.ResultSuccess {
				return cfg.OnFailure(c, result)
			}

			return next(c)
		}
	}
}

func DefaultOnMissing(c echo.Context) error {
	return echo.NewHTTPError(http.StatusBadRequest, "missing verification code")
}

func DefaultOnFailure(c echo.Context, result magiccode.Result) error {
	return c.JSON(http.StatusForbidden, map[string]string{
		"error":  "verification failed",
		"result": string(result),
	})
}

// ResultFromContext returns the verification result stored by the
// middleware, or an empty result when none ran.
func ResultFromContext(c echo.Context) (magiccode.Result, bool) {
	result, ok := c.Get(ContextKey).(magiccode.Result)
	return result, ok
}
