package config_test

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/config"
	"github.com/mediaroom/producer/producer/media"
	"github.com/mediaroom/producer/producer/rtpcapture"
	"github.com/mediaroom/producer/producer/settings"
	"github.com/mediaroom/producer/producer/test"
	"github.com/mediaroom/producer/producer/webrtctransport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	test.UnsetEnvPrefix(config.EnvPrefix)

	c, err := config.Read([]string{})
	require.NoError(t, err)

	assert.Equal(t, 3100, c.BindPort)
	assert.True(t, c.Capabilities.Mic)
	assert.True(t, c.Capabilities.Webcam)
	assert.True(t, c.Capabilities.Screen)
	assert.Equal(t, 15*time.Second, c.TransportWaitTimeout)
	assert.True(t, c.AutoProduceDeferred)
	assert.Equal(t, config.StoreTypeMemory, c.Store.Type)
	assert.Equal(t, "relay", c.Effects.Blur)
	assert.Equal(t, settings.Default(), c.Settings)
	require.Len(t, c.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, c.ICEServers[0].URLs)
}

func TestReadFiles(t *testing.T) {
	var c config.Config

	config.Init(&c)

	err := config.ReadFiles([]string{"config_example.yml"}, &c)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", c.BindHost)
	assert.Equal(t, 3200, c.BindPort)
	assert.Equal(t, "coordinator:debug,info", c.Log)
	assert.True(t, c.Capabilities.Mic)
	assert.False(t, c.Capabilities.Screen)
	assert.True(t, c.Simulcast)
	assert.False(t, c.SimulcastSharing)
	assert.Equal(t, 5*time.Second, c.TransportWaitTimeout)
	assert.False(t, c.AutoProduceDeferred)

	require.Len(t, c.ICEServers, 1)
	ice := c.ICEServers[0]
	assert.Equal(t, []string{"turn:turn.example.com:3478"}, ice.URLs)
	assert.Equal(t, webrtctransport.AuthTypeSecret, ice.AuthType)
	assert.Equal(t, "test_user", ice.AuthSecret.Username)
	assert.Equal(t, "test_secret", ice.AuthSecret.Secret)

	assert.Equal(t, []string{"udp4"}, c.Network.Protocols)
	assert.Equal(t, uint16(9000), c.Network.UDP.PortMin)
	assert.Equal(t, uint16(9010), c.Network.UDP.PortMax)

	assert.Equal(t, config.StoreTypeRedis, c.Store.Type)
	assert.Equal(t, "localhost", c.Store.Redis.Host)
	assert.Equal(t, 6380, c.Store.Redis.Port)
	assert.Equal(t, "room", c.Store.Redis.Prefix)

	require.Len(t, c.Devices, 2)
	assert.Equal(t, "cam", c.Devices[0].DeviceID)
	assert.Equal(t, media.DeviceKindVideoInput, c.Devices[0].Kind)
	assert.Equal(t, "127.0.0.1:5004", c.Devices[0].Listen)
	assert.Equal(t, "video/VP8", c.Devices[0].MimeType)
	assert.Equal(t, 1280, c.Devices[0].Width)
	assert.Equal(t, 30, c.Devices[0].FrameRate)
	assert.Equal(t, media.DeviceKindAudioInput, c.Devices[1].Kind)

	require.NotNil(t, c.Display.Video)
	assert.Equal(t, "display", c.Display.Video.DeviceID)
	assert.Nil(t, c.Display.Audio)

	assert.Equal(t, "secret-token", c.Prometheus.AccessToken)

	// unset settings keep their defaults
	assert.Equal(t, settings.ResolutionHigh, c.Settings.Resolution)
	assert.True(t, c.Settings.BlurEnabled)
	assert.Equal(t, "cam", c.Settings.SelectedVideoDevice)
	assert.Equal(t, settings.Default().FrameRate, c.Settings.FrameRate)

	assert.NoError(t, c.Validate())
}

func TestReadFiles_Error(t *testing.T) {
	var c config.Config

	err := config.ReadFiles([]string{"config_missing.yml"}, &c)
	require.Error(t, err)
	assert.Regexp(t, "no such file", err.Error())
}

func TestReadYAML_Error(t *testing.T) {
	var c config.Config

	err := config.ReadYAML(strings.NewReader("gfakjhglakjhlakdhgl"), &c)
	require.Error(t, err)
	assert.Regexp(t, "decode yaml", err.Error())
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		var c config.Config

		config.Init(&c)

		return c
	}

	c := valid()
	assert.NoError(t, c.Validate())

	c = valid()
	c.Store.Type = "etcd"
	assert.True(t, errors.IsNotValid(c.Validate()))

	c = valid()
	c.TransportWaitTimeout = -time.Second
	assert.True(t, errors.IsNotValid(c.Validate()))

	c = valid()
	c.Effects.Blur = "bokeh"
	assert.Regexp(t, "effects.blur", c.Validate().Error())

	c = valid()
	c.Settings.Resolution = "huge"
	assert.Regexp(t, "settings", c.Validate().Error())

	c = valid()
	c.Devices = []rtpcapture.Source{{DeviceID: "cam", Kind: media.DeviceKindVideoInput}}
	assert.True(t, errors.IsNotValid(c.Validate()))
}

func TestReadFromEnv(t *testing.T) {
	prefix := "PRODUCERTEST_"
	defer test.UnsetEnvPrefix(prefix)

	env := map[string]string{
		"BIND_HOST":                          "0.0.0.0",
		"BIND_PORT":                          "3300",
		"LOG":                                "sender:trace",
		"CAPABILITIES_SCREEN":                "false",
		"SIMULCAST":                          "true",
		"SIMULCAST_SHARING":                  "true",
		"TRANSPORT_WAIT_TIMEOUT":             "1m",
		"AUTO_PRODUCE_DEFERRED":              "false",
		"STORE_TYPE":                         "redis",
		"STORE_REDIS_HOST":                   "redis",
		"STORE_REDIS_PORT":                   "6390",
		"STORE_REDIS_PREFIX":                 "p",
		"NETWORK_PROTOCOLS":                  "tcp4,udp4",
		"NETWORK_INTERFACES":                 "eth0",
		"NETWORK_UDP_PORT_MIN":               "10000",
		"NETWORK_UDP_PORT_MAX":               "10100",
		"ICE_SERVER_URLS":                    "turn:a,turns:b",
		"ICE_SERVER_AUTH_TYPE":               "secret",
		"ICE_SERVER_USERNAME":                "user",
		"ICE_SERVER_SECRET":                  "shh",
		"EFFECTS_BLUR":                       "relay",
		"PROMETHEUS_ACCESS_TOKEN":            "token",
		"SETTINGS_RESOLUTION":                "ultra",
		"SETTINGS_FRAME_RATE":                "24",
		"SETTINGS_BLUR_ENABLED":              "true",
		"SETTINGS_SCREEN_SHARING_RESOLUTION": "bogus",
		"SETTINGS_SELECTED_AUDIO_DEVICE":     "mic-2",
	}

	for key, value := range env {
		require.NoError(t, os.Setenv(prefix+key, value))
	}

	var c config.Config

	config.Init(&c)
	config.ReadFromEnv(prefix, &c)

	assert.Equal(t, "0.0.0.0", c.BindHost)
	assert.Equal(t, 3300, c.BindPort)
	assert.Equal(t, "sender:trace", c.Log)
	assert.True(t, c.Capabilities.Mic)
	assert.False(t, c.Capabilities.Screen)
	assert.True(t, c.Simulcast)
	assert.True(t, c.SimulcastSharing)
	assert.Equal(t, time.Minute, c.TransportWaitTimeout)
	assert.False(t, c.AutoProduceDeferred)

	assert.Equal(t, config.StoreTypeRedis, c.Store.Type)
	assert.Equal(t, "redis", c.Store.Redis.Host)
	assert.Equal(t, 6390, c.Store.Redis.Port)
	assert.Equal(t, "p", c.Store.Redis.Prefix)

	assert.Equal(t, []string{"tcp4", "udp4"}, c.Network.Protocols)
	assert.Equal(t, []string{"eth0"}, c.Network.Interfaces)
	assert.Equal(t, uint16(10000), c.Network.UDP.PortMin)
	assert.Equal(t, uint16(10100), c.Network.UDP.PortMax)

	assert.Equal(t, []webrtctransport.ICEServer{{
		URLs:     []string{"turn:a", "turns:b"},
		AuthType: webrtctransport.AuthTypeSecret,
		AuthSecret: webrtctransport.AuthSecret{
			Username: "user",
			Secret:   "shh",
		},
	}}, c.ICEServers)

	assert.Equal(t, "token", c.Prometheus.AccessToken)

	assert.Equal(t, settings.ResolutionUltra, c.Settings.Resolution)
	assert.Equal(t, 24, c.Settings.FrameRate)
	assert.True(t, c.Settings.BlurEnabled)
	// invalid values are ignored
	assert.Equal(t, settings.Default().ScreenSharingResolution, c.Settings.ScreenSharingResolution)
	assert.Equal(t, "mic-2", c.Settings.SelectedAudioDevice)
}

func TestReadFromEnv_EmptyICEServers(t *testing.T) {
	prefix := "PRODUCERTEST_"
	defer test.UnsetEnvPrefix(prefix)

	require.NoError(t, os.Setenv(prefix+"ICE_SERVER_URLS", ""))

	var c config.Config

	config.Init(&c)
	config.ReadFromEnv(prefix, &c)

	assert.Empty(t, c.ICEServers)
}
