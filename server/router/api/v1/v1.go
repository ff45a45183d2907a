// Package v1 maps the memory service onto its JSON REST surface. Every
// handler is a thin translation layer: parse the request, call one core
// operation, wrap the result in the response envelope. Business rules
// live below in the memory and store packages.
package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/hrygo/memoria/internal/profile"
	"github.com/hrygo/memoria/memory/buffer"
	"github.com/hrygo/memoria/memory/recall"
	"github.com/hrygo/memoria/store"
	"github.com/hrygo/memoria/telemetry"
)

type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store
	Buffer  *buffer.Controller
	Recall  *recall.Assembler
	Metrics *telemetry.Exporter
}

func NewAPIV1Service(p *profile.Profile, st *store.Store, buf *buffer.Controller, rec *recall.Assembler, metrics *telemetry.Exporter) *APIV1Service {
	return &APIV1Service{
		Profile: p,
		Store:   st,
		Buffer:  buf,
		Recall:  rec,
		Metrics: metrics,
	}
}

// Register mounts the API under /api/v1 on the given Echo instance. The
// auth middleware guards every route; the healthcheck is exempted inside
// the middleware itself so probes never need credentials.
func (s *APIV1Service) Register(echoServer *echo.Echo) {
	apiGroup := echoServer.Group("/api/v1", s.AuthMiddleware)

	apiGroup.GET("/healthcheck", s.Healthcheck)

	apiGroup.POST("/users", s.CreateUser)
	apiGroup.GET("/users/:userID", s.GetUser)
	apiGroup.PUT("/users/:userID", s.UpdateUser)
	apiGroup.DELETE("/users/:userID", s.DeleteUser)
	apiGroup.GET("/users/blobs/:userID/:blobType", s.ListUserBlobs)

	apiGroup.POST("/blobs/insert/:userID", s.InsertBlob)
	apiGroup.GET("/blobs/:userID/:blobID", s.GetBlob)
	apiGroup.DELETE("/blobs/:userID/:blobID", s.DeleteBlob)

	apiGroup.POST("/users/buffer/:userID/:blobType", s.FlushBuffer)

	apiGroup.GET("/users/profile/:userID", s.GetUserProfiles)
	apiGroup.POST("/users/profile/:userID", s.AddUserProfile)
	apiGroup.POST("/users/profile/import/:userID", s.ImportUserContext)
	apiGroup.PUT("/users/profile/:userID/:profileID", s.UpdateUserProfile)
	apiGroup.DELETE("/users/profile/:userID/:profileID", s.DeleteUserProfile)

	apiGroup.GET("/users/event/:userID", s.GetUserEvents)
	apiGroup.PUT("/users/event/:userID/:eventID", s.UpdateUserEvent)
	apiGroup.DELETE("/users/event/:userID/:eventID", s.DeleteUserEvent)
	apiGroup.GET("/users/event/search/:userID", s.SearchUserEvents)

	apiGroup.GET("/users/context/:userID", s.GetUserContext)

	apiGroup.GET("/project/profile_config", s.GetProjectProfileConfig)
	apiGroup.POST("/project/profile_config", s.UpdateProjectProfileConfig)
	apiGroup.GET("/project/billing", s.GetProjectBilling)
}
