package config

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/effects"
	"github.com/mediaroom/producer/producer/settings"
	"github.com/mediaroom/producer/producer/webrtctransport"
	"gopkg.in/yaml.v2"
)

const EnvPrefix = "PRODUCER_"

func ReadFile(filename string, c *Config) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.Annotatef(err, "read config file: %s", filename)
	}

	defer f.Close()

	err = ReadYAML(f, c)

	return errors.Annotatef(err, "read yaml config: %s", filename)
}

func ReadFiles(filenames []string, c *Config) error {
	for _, filename := range filenames {
		if err := ReadFile(filename, c); err != nil {
			return errors.Trace(err)
		}
	}

	return nil
}

func Init(c *Config) {
	c.BindPort = 3100
	c.Capabilities.Mic = true
	c.Capabilities.Webcam = true
	c.Capabilities.Screen = true
	c.TransportWaitTimeout = 15 * time.Second
	c.AutoProduceDeferred = true
	c.Store.Type = StoreTypeMemory
	c.Store.Redis.Port = 6379
	c.Store.Redis.Prefix = "producer"
	c.Effects.Blur = effects.ProcessorRelay
	c.Settings = settings.Default()
	c.ICEServers = []webrtctransport.ICEServer{{
		URLs: []string{"stun:stun.l.google.com:19302"},
	}}
}

// Read applies defaults, then every file in order, then the environment.
func Read(filenames []string) (c Config, err error) {
	Init(&c)

	if err := ReadFiles(filenames, &c); err != nil {
		return c, errors.Trace(err)
	}

	ReadFromEnv(EnvPrefix, &c)

	return c, errors.Trace(c.Validate())
}

func ReadYAML(reader io.Reader, c *Config) error {
	decoder := yaml.NewDecoder(reader)
	if err := decoder.Decode(c); err != nil {
		return errors.Annotatef(err, "decode yaml")
	}

	return nil
}

func (c Config) Validate() error {
	switch c.Store.Type {
	case StoreTypeMemory, StoreTypeRedis:
	default:
		return errors.NotValidf("store type %q", c.Store.Type)
	}

	if c.TransportWaitTimeout < 0 {
		return errors.NotValidf("negative transport_wait_timeout")
	}

	if _, err := effects.LookupProcessor(c.Effects.Blur); err != nil {
		return errors.Annotatef(err, "effects.blur")
	}

	if err := c.Settings.Validate(); err != nil {
		return errors.Annotatef(err, "settings")
	}

	for _, source := range c.Devices {
		if err := source.Validate(); err != nil {
			return errors.Annotatef(err, "devices")
		}
	}

	return nil
}

func ReadFromEnv(prefix string, c *Config) {
	setEnvString(&c.BindHost, prefix+"BIND_HOST")
	setEnvInt(&c.BindPort, prefix+"BIND_PORT")
	setEnvString(&c.Log, prefix+"LOG")

	setEnvBool(&c.Capabilities.Mic, prefix+"CAPABILITIES_MIC")
	setEnvBool(&c.Capabilities.Webcam, prefix+"CAPABILITIES_WEBCAM")
	setEnvBool(&c.Capabilities.Screen, prefix+"CAPABILITIES_SCREEN")
	setEnvBool(&c.Simulcast, prefix+"SIMULCAST")
	setEnvBool(&c.SimulcastSharing, prefix+"SIMULCAST_SHARING")
	setEnvDuration(&c.TransportWaitTimeout, prefix+"TRANSPORT_WAIT_TIMEOUT")
	setEnvBool(&c.AutoProduceDeferred, prefix+"AUTO_PRODUCE_DEFERRED")

	setEnvStoreType(&c.Store.Type, prefix+"STORE_TYPE")
	setEnvString(&c.Store.Redis.Host, prefix+"STORE_REDIS_HOST")
	setEnvInt(&c.Store.Redis.Port, prefix+"STORE_REDIS_PORT")
	setEnvString(&c.Store.Redis.Prefix, prefix+"STORE_REDIS_PREFIX")

	setEnvStringArray(&c.Network.Protocols, prefix+"NETWORK_PROTOCOLS")
	setEnvStringArray(&c.Network.Interfaces, prefix+"NETWORK_INTERFACES")
	setEnvUint16(&c.Network.UDP.PortMin, prefix+"NETWORK_UDP_PORT_MIN")
	setEnvUint16(&c.Network.UDP.PortMax, prefix+"NETWORK_UDP_PORT_MAX")

	if value, ok := os.LookupEnv(prefix + "ICE_SERVER_URLS"); ok {
		// An empty value still replaces the default servers.
		c.ICEServers = make([]webrtctransport.ICEServer, 0, 1)

		var ice webrtctransport.ICEServer

		setSlice(&ice.URLs, value)

		if len(ice.URLs) > 0 {
			setEnvAuthType(&ice.AuthType, prefix+"ICE_SERVER_AUTH_TYPE")
			setEnvString(&ice.AuthSecret.Secret, prefix+"ICE_SERVER_SECRET")
			setEnvString(&ice.AuthSecret.Username, prefix+"ICE_SERVER_USERNAME")
			c.ICEServers = append(c.ICEServers, ice)
		}
	}

	setEnvString(&c.Effects.Blur, prefix+"EFFECTS_BLUR")
	setEnvString(&c.Prometheus.AccessToken, prefix+"PROMETHEUS_ACCESS_TOKEN")

	setEnvResolution(&c.Settings.Resolution, prefix+"SETTINGS_RESOLUTION")
	setEnvInt(&c.Settings.FrameRate, prefix+"SETTINGS_FRAME_RATE")
	setEnvBool(&c.Settings.BlurEnabled, prefix+"SETTINGS_BLUR_ENABLED")
	setEnvResolution(&c.Settings.ScreenSharingResolution, prefix+"SETTINGS_SCREEN_SHARING_RESOLUTION")
	setEnvInt(&c.Settings.ScreenSharingFrameRate, prefix+"SETTINGS_SCREEN_SHARING_FRAME_RATE")
	setEnvString(&c.Settings.SelectedAudioDevice, prefix+"SETTINGS_SELECTED_AUDIO_DEVICE")
	setEnvString(&c.Settings.SelectedVideoDevice, prefix+"SETTINGS_SELECTED_VIDEO_DEVICE")
}

func setSlice(dest *[]string, value string) {
	for _, v := range strings.Split(value, ",") {
		if v != "" {
			*dest = append(*dest, v)
		}
	}
}

func setEnvString(dest *string, name string) {
	value := os.Getenv(name)
	if value != "" {
		*dest = value
	}
}

func setEnvInt(dest *int, name string) {
	value, err := strconv.Atoi(os.Getenv(name))
	if err == nil {
		*dest = value
	}
}

func setEnvUint16(dest *uint16, name string) {
	value, err := strconv.ParseUint(os.Getenv(name), 10, 16)
	if err == nil {
		*dest = uint16(value)
	}
}

func setEnvDuration(dest *time.Duration, name string) {
	value, err := time.ParseDuration(os.Getenv(name))
	if err == nil {
		*dest = value
	}
}

func setEnvBool(dest *bool, name string) {
	// Only explicit true or false change the value so an unset variable
	// keeps the default.
	switch os.Getenv(name) {
	case "true":
		*dest = true
	case "false":
		*dest = false
	}
}

func setEnvAuthType(authType *webrtctransport.AuthType, name string) {
	switch value := webrtctransport.AuthType(os.Getenv(name)); value {
	case webrtctransport.AuthTypeSecret, webrtctransport.AuthTypeNone:
		*authType = value
	}
}

func setEnvStoreType(storeType *StoreType, name string) {
	switch value := StoreType(os.Getenv(name)); value {
	case StoreTypeMemory, StoreTypeRedis:
		*storeType = value
	}
}

func setEnvResolution(resolution *settings.Resolution, name string) {
	value := settings.Resolution(os.Getenv(name))
	if value.Validate() == nil {
		*resolution = value
	}
}

func setEnvStringArray(dest *[]string, name string) {
	value := os.Getenv(name)
	if value != "" {
		*dest = strings.Split(value, ",")
	}
}
