package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/memoria/internal/errcode"
)

func recordJSON(t *testing.T, handler func(echo.Context) error) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))

	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestRespondSuccessEnvelope(t *testing.T) {
	rec, body := recordJSON(t, func(c echo.Context) error {
		return respond(c, &idData{ID: "abc"})
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, body.Errno)
	require.Empty(t, body.Errmsg)
	require.Equal(t, map[string]any{"id": "abc"}, body.Data)
}

func TestRespondErrorMirrorsCodeInStatus(t *testing.T) {
	rec, body := recordJSON(t, func(c echo.Context) error {
		return respondError(c, errcode.New(errcode.NotFound, "user gone"))
	})

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, int(errcode.NotFound), body.Errno)
	require.Equal(t, "user gone", body.Errmsg)
	require.Nil(t, body.Data)
}

func TestRespondErrorDefaultsUntypedToInternal(t *testing.T) {
	rec, body := recordJSON(t, func(c echo.Context) error {
		return respondError(c, errors.New("postgres exploded"))
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, int(errcode.Internal), body.Errno)
	require.Contains(t, body.Errmsg, "postgres exploded")
}

func TestRespondErrorKeepsWrappedCode(t *testing.T) {
	wrapped := errors.Wrap(errcode.New(errcode.ServiceUnavailable, "no tokens"), "insert failed")
	rec, body := recordJSON(t, func(c echo.Context) error {
		return respondError(c, wrapped)
	})

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, int(errcode.ServiceUnavailable), body.Errno)
}
