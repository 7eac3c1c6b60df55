package main

import (
	"context"
	"os"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/cli"
	"github.com/mediaroom/producer/producer/config"
	"github.com/mediaroom/producer/producer/logger"
)

const gitDescribe string = "v0.0.0"

func start(ctx context.Context, log logger.Logger, args []string) error {
	err := cli.Exec(ctx, cli.Props{
		Log:     log,
		Version: gitDescribe,
		Args:    args,
	})

	return errors.Trace(err)
}

func main() {
	log := logger.New().
		WithWriter(os.Stderr, logger.FormatFromString(os.Getenv(config.EnvPrefix+"LOG_FORMAT"))).
		WithConfig(logger.ConfigMap{
			"webrtc_transport:pion": logger.LevelWarn,
			"":                      logger.LevelInfo,
		}).
		WithConfig(logger.NewConfigMapFromString(os.Getenv(config.EnvPrefix + "LOG")))

	if err := start(context.Background(), log, os.Args[1:]); err != nil {
		log.WithNamespaceAppended("main").Error("Command error", errors.Trace(err), nil)
		os.Exit(1)
	}
}
