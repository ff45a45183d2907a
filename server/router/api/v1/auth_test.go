package v1

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/memoria/internal/errcode"
)

func TestParseProjectToken(t *testing.T) {
	projectID, secret, err := parseProjectToken("sk-myproject-abc123")
	require.NoError(t, err)
	require.Equal(t, "myproject", projectID)
	require.Equal(t, "abc123", secret)
}

func TestParseProjectTokenDashedProjectID(t *testing.T) {
	projectID, secret, err := parseProjectToken("sk-my-cool-project-abc123")
	require.NoError(t, err)
	require.Equal(t, "my-cool-project", projectID)
	require.Equal(t, "abc123", secret)
}

func TestParseProjectTokenRejectsMalformed(t *testing.T) {
	for _, token := range []string{
		"",
		"sk-",
		"sk-only",
		"pk-project-secret",
		"project-secret",
		"sk--secret",
		"sk-project-",
	} {
		_, _, err := parseProjectToken(token)
		require.Error(t, err, "token %q should be rejected", token)
		require.Equal(t, errcode.Unauthorized, errcode.CodeOf(err))
	}
}

func TestBearerToken(t *testing.T) {
	e := echo.New()

	newCtx := func(header string) echo.Context {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		return e.NewContext(req, httptest.NewRecorder())
	}

	token, err := bearerToken(newCtx("Bearer sk-p-s"))
	require.NoError(t, err)
	require.Equal(t, "sk-p-s", token)

	token, err = bearerToken(newCtx("bearer sk-p-s"))
	require.NoError(t, err)
	require.Equal(t, "sk-p-s", token)

	_, err = bearerToken(newCtx(""))
	require.Equal(t, errcode.Unauthorized, errcode.CodeOf(err))

	_, err = bearerToken(newCtx("Basic dXNlcg=="))
	require.Equal(t, errcode.Unauthorized, errcode.CodeOf(err))

	_, err = bearerToken(newCtx("Bearer "))
	require.Equal(t, errcode.Unauthorized, errcode.CodeOf(err))
}

func TestNormalizeMetricPath(t *testing.T) {
	cases := map[string]string{
		"/api/v1/users/11111111-2222-3333-4444-555555555555":        "/api/v1/users",
		"/api/v1/users/blobs/11111111-2222-3333-4444-5555/chat":     "/api/v1/users/blobs",
		"/api/v1/users/profile/11111111-2222-3333-4444-5555":        "/api/v1/users/profile",
		"/api/v1/users/profile/import/11111111-2222-3333-4444-5555": "/api/v1/users/profile/import",
		"/api/v1/users/event/search/11111111-2222-3333-4444-5555":   "/api/v1/users/event/search",
		"/api/v1/users/event/11111111-2222-3333-4444-5555":          "/api/v1/users/event",
		"/api/v1/blobs/insert/11111111-2222-3333-4444-5555":         "/api/v1/blobs/insert",
		"/api/v1/blobs/11111111/22222222":                           "/api/v1/blobs",
		"/api/v1/project/billing":                                   "/api/v1/project/billing",
		"/api/v1/healthcheck":                                       "/api/v1/healthcheck",
		"/something/else":                                           "/something/else",
	}
	for path, want := range cases {
		require.Equal(t, want, normalizeMetricPath(path), "path %s", path)
	}
}
