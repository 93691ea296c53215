// Command api-server runs the supplycart HTTP API.
package main

import (
	"context"

	sdkapp "github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/tamrhq/supplycart/internal/app"
)

func main() {
	sdkapp.Run(func(ctx context.Context, lg *zap.Logger, m *sdkapp.Telemetry) error {
		cfg, err := app.LoadConfig()
		if err != nil {
			return err
		}
		lg.Info("Loaded configuration", zap.String("addr", cfg.Addr))
		return app.Run(ctx, lg, m, cfg)
	})
}
