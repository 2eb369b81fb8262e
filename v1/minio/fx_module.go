package minio

import (
	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/Aleph-Alpha/gravity/v1/observability"
	"go.uber.org/fx"
)

// FXModule provides *MinioClient. A Config must be supplied.
var FXModule = fx.Module("minio",
	fx.Provide(NewClientWithDI),
)

// MinioParams groups the dependencies of NewClientWithDI.
type MinioParams struct {
	fx.In

	Config   Config
	Logger   logger.Logger
	Observer observability.Observer `optional:"true"`
}

// NewClientWithDI is NewClient for fx.
func NewClientWithDI(p MinioParams) (*MinioClient, error) {
	return NewClient(p.Config, p.Logger, p.Observer)
}
