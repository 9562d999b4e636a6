// Command server runs the cart pricing service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ivanjochie0/luxuryproducts-cart/internal/app"
	"github.com/Ivanjochie0/luxuryproducts-cart/internal/config"
	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/logger"
)

const serviceName = "cart-service"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

// run returns once ctx is canceled and the server has drained.
func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(serviceName, cfg.LogLevel)
	application, err := app.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	log.Info("cart service listening",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.String("promo_backend", cfg.PromoBackend),
	)
	defer log.Info("cart service stopped")
	return application.Run(ctx)
}
