package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// sessionMiddleware only lets through tokens issued for the active session: a token outlives
// neither a logout nor a switch to another child.
func (s *server) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		cur := s.deps.Session.Current()
		if cur == nil || cur.Username != claims.Username {
			return errSessionEnded
		}
		return next(ctx)
	}
}
