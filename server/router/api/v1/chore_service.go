package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/hrygo/memoria/internal/errcode"
)

// Healthcheck verifies both backing stores are reachable. Probes hit
// this without credentials, so it must stay cheap.
func (s *APIV1Service) Healthcheck(c echo.Context) error {
	ctx := c.Request().Context()
	if err := s.Store.Ping(ctx); err != nil {
		return respondError(c, errcode.Wrap(err, errcode.Internal, "database unreachable"))
	}
	if err := s.Store.GetCache().Ping(ctx); err != nil {
		return respondError(c, errcode.Wrap(err, errcode.Internal, "cache unreachable"))
	}
	return respond(c, nil)
}
