// Command ppm is the command-line client for the commit-reveal prediction
// market. One-shot commands read and write the contract directly; serve and
// watch run the long-lived modes.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli"

	"github.com/alanyoungcy/ppmclient/internal/app"
	"github.com/alanyoungcy/ppmclient/internal/config"
)

type metadata struct {
	ctx    context.Context
	cfg    *config.Config
	logger *slog.Logger
	json   bool
	w      io.Writer
	e      io.Writer
}

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(ctx)
	if err := a.Run(os.Args); err != nil {
		fmt.Fprintf(a.ErrWriter, "ppm: %s\n", err)
		stop()
		os.Exit(1)
	}
}

func newApp(ctx context.Context) *cli.App {
	a := cli.NewApp()
	a.Name = "ppm"
	a.Usage = "commit-reveal prediction market client"
	a.Version = version
	a.Writer = os.Stdout
	a.ErrWriter = os.Stderr
	a.Metadata = map[string]interface{}{}

	a.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: config.DefaultPath,
			Usage: " configuration `FILE`",
		},
		cli.BoolFlag{
			Name:  "json, j",
			Usage: " print results as JSON",
		},
	}
	a.Commands = commands()

	a.Before = func(c *cli.Context) error {
		command := c.Args().First()
		if command == "" || command == "help" || command == "h" {
			return nil
		}

		path := c.GlobalString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// Long-lived modes log to stdout like any service; one-shot
		// commands keep stdout for their results.
		logOut := c.App.ErrWriter
		if command == app.ModeServe || command == app.ModeWatch {
			logOut = c.App.Writer
		}
		logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
			Level: parseLevel(cfg.LogLevel),
		}))
		slog.SetDefault(logger)
		logger.Debug("configuration loaded",
			slog.String("path", path),
			slog.Any("config", config.RedactedConfig(cfg)),
		)

		c.App.Metadata["config"] = &metadata{
			ctx:    ctx,
			cfg:    cfg,
			logger: logger,
			json:   c.GlobalBool("json"),
			w:      c.App.Writer,
			e:      c.App.ErrWriter,
		}
		return nil
	}
	return a
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func meta(c *cli.Context) *metadata {
	return c.App.Metadata["config"].(*metadata)
}
