package reconciler

import "go.uber.org/fx"

// FXModule provides *Reconciler.
var FXModule = fx.Module("reconciler",
	fx.Provide(New),
)
