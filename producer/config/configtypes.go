// Package config reads the producer configuration from YAML files and
// PRODUCER_ prefixed environment variables.
package config

import (
	"time"

	"github.com/mediaroom/producer/producer/rtpcapture"
	"github.com/mediaroom/producer/producer/session"
	"github.com/mediaroom/producer/producer/settings"
	"github.com/mediaroom/producer/producer/webrtctransport"
)

type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

type RedisConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Prefix string `yaml:"prefix"`
}

// StoreConfig selects where the settings snapshot lives.
type StoreConfig struct {
	Type  StoreType   `yaml:"type"`
	Redis RedisConfig `yaml:"redis"`
}

type EffectsConfig struct {
	// Blur names the registered processor used for background blur. The
	// default "relay" is a stand-in that leaves the video untouched.
	Blur string `yaml:"blur"`
}

type PrometheusConfig struct {
	AccessToken string `yaml:"access_token"`
}

type Config struct {
	BindHost string `yaml:"bind_host"`
	BindPort int    `yaml:"bind_port"`
	// Log is a namespace level list such as "coordinator:debug,info".
	Log string `yaml:"log"`

	Capabilities     session.Capabilities `yaml:"capabilities"`
	Simulcast        bool                 `yaml:"simulcast"`
	SimulcastSharing bool                 `yaml:"simulcast_sharing"`

	// TransportWaitTimeout bounds how long a start waits for the transport
	// before the track is parked. Zero waits indefinitely.
	TransportWaitTimeout time.Duration `yaml:"transport_wait_timeout"`
	AutoProduceDeferred  bool          `yaml:"auto_produce_deferred"`

	ICEServers []webrtctransport.ICEServer   `yaml:"ice_servers"`
	Network    webrtctransport.NetworkConfig `yaml:"network"`

	Store      StoreConfig         `yaml:"store"`
	Effects    EffectsConfig       `yaml:"effects"`
	Devices    []rtpcapture.Source `yaml:"devices"`
	Display    rtpcapture.Display  `yaml:"display"`
	Prometheus PrometheusConfig    `yaml:"prometheus"`
	Settings   settings.Snapshot   `yaml:"settings"`
}
