package cli

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/go-redis/redis/v7"
	"github.com/hashicorp/go-multierror"
	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/api"
	"github.com/mediaroom/producer/producer/codecs"
	"github.com/mediaroom/producer/producer/config"
	"github.com/mediaroom/producer/producer/coordinator"
	"github.com/mediaroom/producer/producer/devices"
	"github.com/mediaroom/producer/producer/effects"
	"github.com/mediaroom/producer/producer/gate"
	"github.com/mediaroom/producer/producer/logger"
	"github.com/mediaroom/producer/producer/rtpcapture"
	"github.com/mediaroom/producer/producer/session"
	"github.com/mediaroom/producer/producer/settings"
	"github.com/mediaroom/producer/producer/webrtctransport"
	"github.com/spf13/cobra"
)

type serveHandler struct {
	props Props
	flags *configFlags
}

// services are the components of a running producer in the order they are
// created.
type services struct {
	log         logger.Logger
	redis       *redis.Client
	provider    *rtpcapture.Provider
	transport   *webrtctransport.Transport
	coordinator *coordinator.Coordinator
	mux         *api.Mux

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func newSettingsStore(log logger.Logger, c config.Config) (settings.Store, *redis.Client) {
	if c.Store.Type != config.StoreTypeRedis {
		log.Info("Using memory settings store", nil)

		return settings.NewMemoryStore(c.Settings), nil
	}

	addr := net.JoinHostPort(c.Store.Redis.Host, strconv.Itoa(c.Store.Redis.Port))

	log.Info("Using redis settings store", logger.Ctx{
		"addr":   addr,
		"prefix": c.Store.Redis.Prefix,
	})

	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	return settings.NewRedisStore(client, c.Store.Redis.Prefix, c.Settings), client
}

func newServices(ctx context.Context, log logger.Logger, version string, c config.Config) (*services, error) {
	s := &services{
		log: log,
	}

	blur, err := effects.LookupProcessor(c.Effects.Blur)
	if err != nil {
		return nil, errors.Annotate(err, "effects.blur")
	}

	registry := codecs.NewRegistryDefault()

	s.provider, err = rtpcapture.NewProvider(rtpcapture.Params{
		Log:     log,
		Codecs:  registry,
		Sources: c.Devices,
		Display: c.Display,
	})
	if err != nil {
		return nil, errors.Annotate(err, "create capture provider")
	}

	g := gate.New(log, c.TransportWaitTimeout)

	s.transport, err = webrtctransport.New(webrtctransport.Params{
		Log:        log,
		Gate:       g,
		Codecs:     registry,
		ICEServers: c.ICEServers,
		Network:    c.Network,
	})
	if err != nil {
		return nil, errors.Trace(multierror.Append(
			errors.Annotate(err, "create transport"),
			s.provider.Close(),
		).ErrorOrNil())
	}

	store, client := newSettingsStore(log, c)
	s.redis = client

	directory := devices.NewDirectory(log, s.provider)
	state := session.New(c.Capabilities)

	s.coordinator = coordinator.New(coordinator.Params{
		Log: log,
		Config: coordinator.Config{
			Simulcast:        c.Simulcast,
			SimulcastSharing: c.SimulcastSharing,
		},
		Provider:  s.provider,
		Devices:   directory,
		Effects:   effects.NewPipeline(log, blur),
		Transport: g,
		Binder:    s.transport,
		Settings:  store,
		Session:   state,
	})

	if c.AutoProduceDeferred {
		g.OnBound(func() {
			s.produceDeferred(ctx)
		})
	}

	s.mux = api.NewMux(api.Params{
		Log:         log,
		Version:     version,
		Controller:  s.coordinator,
		Session:     state,
		Devices:     directory,
		Settings:    store,
		Transport:   s.transport,
		AccessToken: c.Prometheus.AccessToken,
	})

	return s, nil
}

// produceDeferred runs outside of the transport callback that reported the
// binding.
func (s *services) produceDeferred(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.coordinator.ProduceDeferred(ctx)
	}()
}

// Close stops production before tearing down the transport and the
// capture sources the senders use.
func (s *services) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()

	var merr *multierror.Error

	if err := s.coordinator.Close(); err != nil {
		merr = multierror.Append(merr, errors.Annotate(err, "close coordinator"))
	}

	if err := s.transport.Close(); err != nil {
		merr = multierror.Append(merr, errors.Annotate(err, "close transport"))
	}

	if err := s.provider.Close(); err != nil {
		merr = multierror.Append(merr, errors.Annotate(err, "close capture provider"))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			merr = multierror.Append(merr, errors.Annotate(err, "close redis"))
		}
	}

	s.log.Info("Services closed", nil)

	return merr.ErrorOrNil()
}

func (h *serveHandler) Handle(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()

	c, err := config.Read(h.flags.files)
	if err != nil {
		return errors.Annotate(err, "read config")
	}

	log := h.props.Log.WithConfig(logger.NewConfigMapFromString(c.Log))

	log.Info(fmt.Sprintf("Using config: %+v", c), nil)

	listener, err := net.Listen("tcp", net.JoinHostPort(c.BindHost, strconv.Itoa(c.BindPort)))
	if err != nil {
		return errors.Annotate(err, "listen")
	}

	defer listener.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := newServices(ctx, log, h.props.Version, c)
	if err != nil {
		return errors.Trace(err)
	}

	defer func() {
		cancel()

		if closeErr := s.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr).ErrorOrNil()
		}
	}()

	log.Info("Listen", logger.Ctx{
		"local_addr": listener.Addr().String(),
	})

	err = newHTTPServer(s.mux).Start(ctx, listener)

	return errors.Trace(err)
}

func newServeCmd(props Props, flags *configFlags) *cobra.Command {
	h := &serveHandler{
		props: props,
		flags: flags,
	}

	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP control API (default)",
		Args:  cobra.NoArgs,
		RunE:  h.Handle,
	}
}
