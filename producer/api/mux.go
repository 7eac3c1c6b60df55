// Package api is the HTTP control surface of the producer. Operations never
// fail the request because of a capture or transport problem: the outcome is
// visible in the returned state. Only malformed input (400) and unknown
// kinds or areas (404) are rejected.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/mediaroom/producer/producer/coordinator"
	"github.com/mediaroom/producer/producer/devices"
	"github.com/mediaroom/producer/producer/logger"
	"github.com/mediaroom/producer/producer/media"
	"github.com/mediaroom/producer/producer/sender"
	"github.com/mediaroom/producer/producer/session"
	"github.com/mediaroom/producer/producer/settings"
	"github.com/mediaroom/producer/producer/webrtctransport"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Controller runs the production operations.
type Controller interface {
	Update(ctx context.Context, kind media.Kind, opts coordinator.UpdateOptions)
	Stop(ctx context.Context, kind media.Kind)
	Pause(ctx context.Context, kind media.Kind)
	Resume(ctx context.Context, kind media.Kind)

	UpdatePreviewMic(ctx context.Context, opts coordinator.UpdateOptions)
	StopPreviewMic(ctx context.Context)
	UpdatePreviewWebcam(ctx context.Context, opts coordinator.UpdateOptions)
	StopPreviewWebcam(ctx context.Context)

	UpdateSettings(ctx context.Context, area coordinator.Area, patch settings.Patch)

	SenderStates() map[media.Kind]sender.State
}

// DeviceLister is implemented by devices.Directory.
type DeviceLister interface {
	Refresh(ctx context.Context, phase devices.Phase) error
	Invalidate(phase devices.Phase)
	Devices() []media.DeviceInfo
}

// Transport is the signalling side of the network transport.
type Transport interface {
	Offer(ctx context.Context) (webrtc.SessionDescription, error)
	Answer(answer webrtc.SessionDescription) error
	State() webrtctransport.State
}

type Params struct {
	Log         logger.Logger
	Version     string
	Controller  Controller
	Session     *session.State
	Devices     DeviceLister
	Settings    settings.Store
	Transport   Transport
	AccessToken string
}

type Mux struct {
	handler *chi.Mux
}

func (mux *Mux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux.handler.ServeHTTP(w, r)
}

func NewMux(params Params) *Mux {
	log := params.Log.WithNamespaceAppended("mux")

	h := &handlers{
		log:        log,
		renderer:   NewRenderer(log),
		controller: params.Controller,
		session:    params.Session,
		devices:    params.Devices,
		settings:   params.Settings,
		transport:  params.Transport,
		version:    params.Version,
	}

	router := chi.NewRouter()

	router.Route("/api", func(router chi.Router) {
		router.Get("/state", h.getState)
		router.Get("/devices", h.getDevices)
		router.Put("/capabilities", h.putCapabilities)
		router.Get("/settings", h.getSettings)
		router.Patch("/settings/{area}", h.patchSettings)
		router.Post("/media/{kind}/{op}", h.mediaOperation)
		router.Post("/preview/{kind}/{op}", h.previewOperation)
		router.Get("/transport/offer", h.getOffer)
		router.Post("/transport/answer", h.postAnswer)
	})

	router.Get("/ws/state", h.stateStream)

	router.Get("/probes/liveness", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
	})
	router.Get("/probes/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
	})
	router.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		h.renderer.JSON(w, http.StatusOK, map[string]string{"version": h.version})
	})

	router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		accessToken := r.Header.Get("Authorization")
		if strings.HasPrefix(accessToken, "Bearer ") {
			accessToken = accessToken[len("Bearer "):]
		} else {
			accessToken = r.FormValue("access_token")
		}

		if accessToken == "" || accessToken != params.AccessToken {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		promhttp.Handler().ServeHTTP(w, r)
	})

	return &Mux{handler: router}
}
