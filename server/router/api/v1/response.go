package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/memoria/internal/errcode"
)

// envelope is the uniform response body. errno carries the service error
// code; errmsg is empty on success. data is omitted when a call has
// nothing to return.
type envelope struct {
	Data   any    `json:"data"`
	Errno  int    `json:"errno"`
	Errmsg string `json:"errmsg"`
}

type idData struct {
	ID string `json:"id"`
}

type idsData struct {
	IDs []string `json:"ids"`
}

// respond writes a success envelope. data may be nil for operations that
// only acknowledge.
func respond(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, &envelope{
		Data:   data,
		Errno:  int(errcode.OK),
		Errmsg: "",
	})
}

// respondError translates any error into the envelope. The HTTP status
// mirrors the error category so plain HTTP clients see failures without
// parsing the body; errno stays authoritative for SDK clients.
func respondError(c echo.Context, err error) error {
	converted := errcode.Convert(err)
	if converted.Code == errcode.Internal {
		slog.Error("request failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"error", err)
	}
	return c.JSON(converted.Code.HTTPStatus(), &envelope{
		Data:   nil,
		Errno:  int(converted.Code),
		Errmsg: converted.Message,
	})
}
