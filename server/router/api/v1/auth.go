package v1

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/memoria/internal/errcode"
	"github.com/hrygo/memoria/store"
)

const (
	projectIDContextKey = "memoria.project_id"

	authSecretKeyFmt   = "memoria::auth::token::%s"
	authStatusKeyFmt   = "memoria::auth::project_status::%s"
	authStatusCacheTTL = time.Hour
)

// metricPathPrefixes collapses concrete routes into stable metric
// labels, so per-user and per-blob IDs never explode the cardinality.
// Order matters: longer prefixes shadow their parents.
var metricPathPrefixes = []string{
	"/api/v1/users/blobs",
	"/api/v1/users/buffer",
	"/api/v1/users/profile/import",
	"/api/v1/users/profile",
	"/api/v1/users/event/search",
	"/api/v1/users/event",
	"/api/v1/users/context",
	"/api/v1/users",
	"/api/v1/blobs/insert",
	"/api/v1/blobs",
	"/api/v1/project/billing",
	"/api/v1/project/profile_config",
	"/api/v1/healthcheck",
}

func normalizeMetricPath(path string) string {
	for _, prefix := range metricPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return prefix
		}
	}
	return path
}

// parseProjectToken splits an sk-{project_id}-{secret} API token.
// Project IDs may themselves contain dashes, so everything between the
// sk prefix and the final segment belongs to the project.
func parseProjectToken(token string) (projectID, secret string, err error) {
	parts := strings.Split(strings.TrimSpace(token), "-")
	if len(parts) < 3 || parts[0] != "sk" {
		return "", "", errcode.New(errcode.Unauthorized, "invalid access token format")
	}
	secret = parts[len(parts)-1]
	projectID = strings.Join(parts[1:len(parts)-1], "-")
	if projectID == "" || secret == "" {
		return "", "", errcode.New(errcode.Unauthorized, "invalid access token format")
	}
	return projectID, secret, nil
}

// AuthMiddleware authenticates every API call with a bearer token and
// stamps the resolved project onto the request context. Project secrets
// and statuses are cached in Redis so the hot path stays off Postgres.
func (s *APIV1Service) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		if strings.HasSuffix(path, "/healthcheck") {
			if s.Metrics != nil {
				s.Metrics.RecordHealthcheck()
			}
			return next(c)
		}

		token, err := bearerToken(c)
		if err != nil {
			return respondError(c, err)
		}

		projectID, err := s.authenticate(c, token)
		if err != nil {
			return respondError(c, err)
		}
		c.Set(projectIDContextKey, projectID)

		start := time.Now()
		handlerErr := next(c)
		if s.Metrics != nil {
			s.Metrics.RecordRequest(projectID, normalizeMetricPath(path), c.Request().Method, time.Since(start))
		}
		return handlerErr
	}
}

func bearerToken(c echo.Context) (string, error) {
	header := c.Request().Header.Get("Authorization")
	if header == "" {
		return "", errcode.New(errcode.Unauthorized, "authorization header required")
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errcode.New(errcode.Unauthorized, "expected bearer token")
	}
	return strings.TrimSpace(token), nil
}

// authenticate resolves a bearer token to a project ID. With no access
// token configured the deployment is single-tenant and every bearer
// token acts as root.
func (s *APIV1Service) authenticate(c echo.Context, token string) (string, error) {
	if s.Profile.AccessToken == "" || token == s.Profile.AccessToken {
		return store.RootProjectID, nil
	}

	projectID, secret, err := parseProjectToken(token)
	if err != nil {
		return "", err
	}

	ctx := c.Request().Context()
	expected, err := s.projectSecret(ctx, projectID)
	if err != nil {
		return "", err
	}
	if secret != expected {
		return "", errcode.New(errcode.Unauthorized, "invalid access token")
	}

	status, err := s.projectStatus(ctx, projectID)
	if err != nil {
		return "", err
	}
	if status == store.ProjectStatusSuspended {
		return "", errcode.New(errcode.Forbidden, "project is suspended")
	}
	return projectID, nil
}

func (s *APIV1Service) projectSecret(ctx context.Context, projectID string) (string, error) {
	key := fmt.Sprintf(authSecretKeyFmt, projectID)
	if secret, ok := s.Store.GetCache().Get(ctx, key); ok {
		return secret, nil
	}
	project, err := s.Store.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	if project == nil {
		return "", errcode.New(errcode.Unauthorized, "project %s not found", projectID)
	}
	s.Store.GetCache().Set(ctx, key, project.Secret, 0)
	return project.Secret, nil
}

func (s *APIV1Service) projectStatus(ctx context.Context, projectID string) (string, error) {
	key := fmt.Sprintf(authStatusKeyFmt, projectID)
	if status, ok := s.Store.GetCache().Get(ctx, key); ok {
		return status, nil
	}
	project, err := s.Store.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	if project == nil {
		return "", errcode.New(errcode.Unauthorized, "project %s not found", projectID)
	}
	s.Store.GetCache().Set(ctx, key, project.Status, authStatusCacheTTL)
	return project.Status, nil
}
