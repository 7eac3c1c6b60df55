package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/config"
	"github.com/mediaroom/producer/producer/rtpcapture"
	"github.com/spf13/cobra"
)

type devicesHandler struct {
	props Props
	flags *configFlags
}

func (h *devicesHandler) Handle(cmd *cobra.Command, args []string) (err error) {
	c, err := config.Read(h.flags.files)
	if err != nil {
		return errors.Annotate(err, "read config")
	}

	provider, err := rtpcapture.NewProvider(rtpcapture.Params{
		Log:     h.props.Log,
		Sources: c.Devices,
		Display: c.Display,
	})
	if err != nil {
		return errors.Annotate(err, "create capture provider")
	}

	defer func() {
		if closeErr := provider.Close(); closeErr != nil {
			err = multierror.Append(err, errors.Trace(closeErr)).ErrorOrNil()
		}
	}()

	devices, err := provider.EnumerateDevices(cmd.Context())
	if err != nil {
		return errors.Annotate(err, "enumerate devices")
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "DEVICE ID\tKIND\tLABEL\tGROUP ID")

	for _, device := range devices {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", device.DeviceID, device.Kind, device.Label, device.GroupID)
	}

	return errors.Trace(w.Flush())
}

func newDevicesCmd(props Props, flags *configFlags) *cobra.Command {
	h := &devicesHandler{
		props: props,
		flags: flags,
	}

	return &cobra.Command{
		Use:   "devices",
		Short: "List the configured capture devices",
		Args:  cobra.NoArgs,
		RunE:  h.Handle,
	}
}
