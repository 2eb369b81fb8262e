// Package api is the HTTP command surface: clusters, fragments, gravity
// lookups and document uploads, all scoped to the owner named by the bearer
// token.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/Aleph-Alpha/gravity/internal/gravity"
	"github.com/Aleph-Alpha/gravity/internal/reconciler"
	"github.com/Aleph-Alpha/gravity/internal/store"
	"github.com/Aleph-Alpha/gravity/v1/kafka"
	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Blobs stores uploaded documents.
type Blobs interface {
	UploadWithContentType(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	SignedURL(ctx context.Context, key string) (string, error)
}

// Server holds the handlers.
type Server struct {
	cfg        Config
	auth       *Authenticator
	reconciler *reconciler.Reconciler
	store      *store.Store
	engine     *gravity.Engine
	publisher  kafka.Publisher
	blobs      Blobs
	logger     logger.Logger
	validate   *validator.Validate
}

// Deps groups the collaborators of a Server.
type Deps struct {
	Auth       *Authenticator
	Reconciler *reconciler.Reconciler
	Store      *store.Store
	Engine     *gravity.Engine
	Publisher  kafka.Publisher
	Blobs      Blobs
	Logger     logger.Logger
}

// NewServer returns a Server.
func NewServer(cfg Config, d Deps) *Server {
	cfg.applyDefaults()
	return &Server{
		cfg:        cfg,
		auth:       d.Auth,
		reconciler: d.Reconciler,
		store:      d.Store,
		engine:     d.Engine,
		publisher:  d.Publisher,
		blobs:      d.Blobs,
		logger:     d.Logger,
		validate:   validator.New(),
	}
}

// Handler builds the gin engine.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware(s.cfg.ServiceName), s.requestLog())

	r.GET("/health", s.health)

	api := r.Group("/api", s.auth.RequireOwner())
	api.GET("/galaxies", s.listClusters)
	api.POST("/galaxies", s.createCluster)
	api.DELETE("/galaxies/:id", s.deleteCluster)
	api.GET("/fragments", s.listFragments)
	api.POST("/fragments", s.createFragment)
	api.DELETE("/fragments/:id", s.deleteFragment)
	api.POST("/summaries", s.createSummary)
	api.POST("/gravity", s.gravity)
	api.POST("/suggest-links", s.suggestLinks)
	api.POST("/documents", s.uploadDocument)
	api.GET("/documents/:fingerprint/url", s.documentURL)
	api.GET("/profile", s.profile)
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.DebugWithContext(c.Request.Context(), "HTTP request", nil, map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
