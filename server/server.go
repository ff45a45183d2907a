// Package server owns the HTTP shell: the Echo instance, its shared
// middleware, and the graceful shutdown path. Route handlers live in
// server/router/api/v1.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/memoria/internal/profile"
	"github.com/hrygo/memoria/memory/buffer"
	"github.com/hrygo/memoria/memory/recall"
	apiv1 "github.com/hrygo/memoria/server/router/api/v1"
	"github.com/hrygo/memoria/store"
	"github.com/hrygo/memoria/telemetry"
)

type Server struct {
	profile    *profile.Profile
	store      *store.Store
	echoServer *echo.Echo
}

func NewServer(p *profile.Profile, st *store.Store, buf *buffer.Controller, rec *recall.Assembler, metrics *telemetry.Exporter) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			slog.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	if p.UseCORS {
		if hosts := p.APIHostList(); len(hosts) > 0 {
			e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: hosts}))
		} else {
			e.Use(middleware.CORS())
		}
	}

	s := &Server{
		profile:    p,
		store:      st,
		echoServer: e,
	}

	apiv1.NewAPIV1Service(p, st, buf, rec, metrics).Register(e)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	return s, nil
}

// Start binds the listener synchronously so port clashes surface to the
// caller, then serves in the background.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", address)
	}
	s.echoServer.Listener = listener

	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped unexpectedly", "error", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown http server", "error", err)
	}
	if err := s.store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("memoria stopped properly")
}
