package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// configFlags is shared by the commands that read the configuration.
type configFlags struct {
	files []string
}

func (f *configFlags) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringSliceVarP(&f.files, "config", "c", nil, "config file to use, may be repeated")
}

// NewRootCommand returns the producer command tree. Running it without a
// subcommand serves the HTTP API.
func NewRootCommand(props Props) *cobra.Command {
	flags := &configFlags{}

	serve := newServeCmd(props, flags)

	root := &cobra.Command{
		Use:           "producer",
		Short:         "Produces local media tracks over a WebRTC transport.",
		Version:       props.Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	root.SetOut(props.Stdout)
	flags.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		serve,
		newDevicesCmd(props, flags),
		newVersionCmd(props),
	)

	return root
}
