package v1

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hrygo/memoria/internal/errcode"
	"github.com/hrygo/memoria/store"
)

// requestProjectID returns the project stamped by the auth middleware.
func requestProjectID(c echo.Context) string {
	projectID, _ := c.Get(projectIDContextKey).(string)
	return projectID
}

func pathUUID(c echo.Context, name string) (uuid.UUID, error) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errcode.New(errcode.BadRequest, "invalid %s %q", name, raw)
	}
	return id, nil
}

func pathBlobType(c echo.Context) (store.BlobType, error) {
	raw := c.Param("blobType")
	blobType, ok := store.ParseBlobType(raw)
	if !ok {
		return "", errcode.New(errcode.BadRequest, "unknown blob type %q", raw)
	}
	return blobType, nil
}

func queryInt(c echo.Context, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errcode.New(errcode.BadRequest, "invalid %s %q", name, raw)
	}
	return value, nil
}

func queryFloat(c echo.Context, name string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errcode.New(errcode.BadRequest, "invalid %s %q", name, raw)
	}
	return value, nil
}

func queryBool(c echo.Context, name string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errcode.New(errcode.BadRequest, "invalid %s %q", name, raw)
	}
	return value, nil
}

// queryStrings collects a repeated query parameter, dropping empties.
func queryStrings(c echo.Context, name string) []string {
	raw := c.QueryParams()[name]
	if len(raw) == 0 {
		return nil
	}
	values := make([]string, 0, len(raw))
	for _, p := range raw {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
