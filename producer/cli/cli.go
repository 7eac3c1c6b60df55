// Package cli contains the producer commands.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/logger"
)

type Props struct {
	Log     logger.Logger
	Version string
	Args    []string
	// Stdout receives command output, os.Stdout when nil.
	Stdout io.Writer
}

// Exec runs the command named by props.Args until it finishes or ctx is
// canceled. SIGINT and SIGTERM cancel the context.
func Exec(ctx context.Context, props Props) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if props.Stdout == nil {
		props.Stdout = os.Stdout
	}

	cmd := NewRootCommand(props)
	cmd.SetArgs(props.Args)

	err := cmd.ExecuteContext(ctx)

	return errors.Trace(err)
}
