package cli

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/juju/errors"
)

const shutdownTimeout = 5 * time.Second

type httpServer struct {
	server *http.Server
}

func newHTTPServer(handler http.Handler) *httpServer {
	return &httpServer{
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start serves l until ctx is done. Request contexts are canceled on
// shutdown so long running streams end too.
func (s *httpServer) Start(ctx context.Context, l net.Listener) error {
	baseCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.server.BaseContext = func(net.Listener) context.Context {
		return baseCtx
	}

	startErrCh := make(chan error, 1)

	go func() {
		defer close(startErrCh)

		err := s.server.Serve(l)

		startErrCh <- errors.Annotate(err, "start server")
	}()

	select {
	case <-ctx.Done():
	case err := <-startErrCh:
		return errors.Trace(err)
	}

	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	err := errors.Trace(s.server.Shutdown(shutdownCtx))

	if startErr := <-startErrCh; errors.Cause(startErr) != http.ErrServerClosed {
		err = errors.Trace(startErr)
	}

	return err
}
