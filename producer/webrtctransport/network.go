package webrtctransport

import (
	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/logger"
	"github.com/pion/webrtc/v3"
)

type PortRange struct {
	PortMin uint16 `yaml:"port_min"`
	PortMax uint16 `yaml:"port_max"`
}

// NetworkConfig restricts where ICE gathers candidates. Zero values leave
// pion's defaults in place.
type NetworkConfig struct {
	// Interfaces lists the network interfaces candidates may use.
	Interfaces []string `yaml:"interfaces"`
	// Protocols are pion network types such as udp4 or tcp4.
	Protocols []string  `yaml:"protocols"`
	UDP       PortRange `yaml:"udp"`
}

func networkTypes(log logger.Logger, protocols []string) []webrtc.NetworkType {
	ret := make([]webrtc.NetworkType, 0, len(protocols))

	for _, protocol := range protocols {
		networkType, err := webrtc.NewNetworkType(protocol)
		if err != nil {
			log.Error("Parse network type", errors.Trace(err), logger.Ctx{
				"protocol": protocol,
			})

			continue
		}

		ret = append(ret, networkType)
	}

	return ret
}

func configureNetwork(log logger.Logger, settingEngine *webrtc.SettingEngine, config NetworkConfig) {
	if types := networkTypes(log, config.Protocols); len(types) > 0 {
		settingEngine.SetNetworkTypes(types)
	}

	if udp := config.UDP; udp.PortMin > 0 && udp.PortMax > 0 {
		logCtx := logger.Ctx{
			"port_min": udp.PortMin,
			"port_max": udp.PortMax,
		}

		if err := settingEngine.SetEphemeralUDPPortRange(udp.PortMin, udp.PortMax); err != nil {
			log.Error("Set ephemeral UDP port range", errors.Trace(err), logCtx)
		} else {
			log.Info("Set ephemeral UDP port range", logCtx)
		}
	}

	if len(config.Interfaces) == 0 {
		return
	}

	allowed := make(map[string]struct{}, len(config.Interfaces))
	for _, iface := range config.Interfaces {
		allowed[iface] = struct{}{}
	}

	settingEngine.SetInterfaceFilter(func(iface string) bool {
		_, ok := allowed[iface]

		return ok
	})
}
