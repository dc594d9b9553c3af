// internal/api/auth.go basic auth for the JSON API
package api

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"
)

const authTypeBasic = "basic"

// BasicAuthMiddleware protects the API with HTTP basic auth when enabled in
// the security settings. The health endpoint stays reachable without
// credentials so external probes keep working; the Prometheus endpoint runs
// on its own listener and is never behind this middleware.
func (c *Controller) BasicAuthMiddleware() echo.MiddlewareFunc {
	return middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Skipper: func(ctx echo.Context) bool {
			if !c.Settings.Security.BasicAuth.Enabled {
				return true
			}
			return ctx.Path() == "/api/v1/health"
		},
		Realm:     "hushd",
		Validator: c.validateBasicAuth,
	})
}

// validateBasicAuth compares the presented credentials against the
// configured username and bcrypt password hash. Both comparisons run on
// every attempt so a response cannot reveal which part was wrong.
func (c *Controller) validateBasicAuth(username, password string, ctx echo.Context) (bool, error) {
	auth := &c.Settings.Security.BasicAuth

	userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(auth.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(auth.Password), []byte(password))

	if userMatch && passErr == nil {
		if c.metrics != nil && c.metrics.HTTP != nil {
			c.metrics.HTTP.RecordAuthOperation(authTypeBasic, "success")
		}
		return true, nil
	}

	if c.metrics != nil && c.metrics.HTTP != nil {
		c.metrics.HTTP.RecordAuthOperation(authTypeBasic, "error")
		c.metrics.HTTP.RecordAuthError(authTypeBasic, "invalid_credentials")
	}
	if c.apiLogger != nil {
		c.apiLogger.Warn("basic auth rejected",
			"ip", ctx.RealIP(),
			"path", ctx.Request().URL.Path)
	}
	return false, nil
}

// HashPassword produces the bcrypt hash stored in the security settings.
// Used by the passwd command so operators never write plaintext passwords
// into the config file.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
