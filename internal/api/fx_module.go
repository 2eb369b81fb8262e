package api

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/Aleph-Alpha/gravity/internal/gravity"
	"github.com/Aleph-Alpha/gravity/internal/reconciler"
	"github.com/Aleph-Alpha/gravity/internal/store"
	"github.com/Aleph-Alpha/gravity/v1/kafka"
	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/Aleph-Alpha/gravity/v1/minio"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

// Params groups the dependencies of NewServerWithDI.
type Params struct {
	fx.In

	Config     Config
	Reconciler *reconciler.Reconciler
	Store      *store.Store
	Engine     *gravity.Engine
	Publisher  kafka.Publisher
	Blobs      *minio.MinioClient
	Logger     logger.Logger
}

// NewServerWithDI is NewServer for fx.
func NewServerWithDI(p Params) (*Server, error) {
	auth, err := NewAuthenticator(p.Config.JWT)
	if err != nil {
		return nil, err
	}
	return NewServer(p.Config, Deps{
		Auth:       auth,
		Reconciler: p.Reconciler,
		Store:      p.Store,
		Engine:     p.Engine,
		Publisher:  p.Publisher,
		Blobs:      p.Blobs,
		Logger:     p.Logger,
	}), nil
}

// FXModule provides *Server and serves it for the lifetime of the app.
var FXModule = fx.Module("api",
	fx.Provide(NewServerWithDI),
	fx.Invoke(RegisterServerLifecycle),
)

// RegisterServerLifecycle binds the listener on start, so a taken port fails
// the start, and shuts the server down gracefully on stop.
func RegisterServerLifecycle(lc fx.Lifecycle, s *Server, log logger.Logger, shutdowner fx.Shutdowner) {
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:        s.cfg.Address,
		Handler:     s.Handler(),
		ReadTimeout: s.cfg.ReadTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("Starting HTTP API", nil, map[string]interface{}{"address": srv.Addr})
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("HTTP API stopped", err, nil)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
			defer cancel()
			log.Info("Shutting down HTTP API", nil, nil)
			return srv.Shutdown(ctx)
		},
	})
}
