package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/urfave/cli"

	"github.com/alanyoungcy/ppmclient/internal/app"
)

// runMode runs serve or watch until SIGINT or SIGTERM.
func runMode(c *cli.Context) error {
	m := meta(c)
	mode := c.Command.Name

	m.logger.Info("ppm starting",
		slog.String("mode", mode),
		slog.String("version", version),
		slog.String("config", c.GlobalString("config")),
	)

	application := app.New(m.cfg, m.logger)
	defer application.Close()

	if err := application.Run(m.ctx, mode); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Error("application error", slog.String("error", err.Error()))
		return err
	}

	m.logger.Info("ppm stopped")
	return nil
}
