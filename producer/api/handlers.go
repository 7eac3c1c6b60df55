package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/coordinator"
	"github.com/mediaroom/producer/producer/devices"
	"github.com/mediaroom/producer/producer/logger"
	"github.com/mediaroom/producer/producer/media"
	"github.com/mediaroom/producer/producer/sender"
	"github.com/mediaroom/producer/producer/session"
	"github.com/mediaroom/producer/producer/settings"
	"github.com/mediaroom/producer/producer/webrtctransport"
	"github.com/pion/webrtc/v3"
)

const maxBodySize = 1 << 20

// State is returned by every operation and streamed over /ws/state.
type State struct {
	Session   session.Snapshot            `json:"session"`
	Senders   map[media.Kind]sender.State `json:"senders"`
	Transport *webrtctransport.State      `json:"transport,omitempty"`
}

type handlers struct {
	log        logger.Logger
	renderer   *Renderer
	controller Controller
	session    *session.State
	devices    DeviceLister
	settings   settings.Store
	transport  Transport
	version    string
}

func (h *handlers) state() State {
	state := State{
		Session: h.session.Snapshot(),
		Senders: h.controller.SenderStates(),
	}

	if h.transport != nil {
		transport := h.transport.State()
		state.Transport = &transport
	}

	return state
}

// decode reads an optional JSON body into v. An empty body leaves v
// untouched.
func decode(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil && err != io.EOF {
		return errors.NewNotValid(err, "decode request body")
	}

	return nil
}

func (h *handlers) getState(w http.ResponseWriter, r *http.Request) {
	h.renderer.JSON(w, http.StatusOK, h.state())
}

func (h *handlers) getDevices(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("refresh") == "true" {
		h.devices.Invalidate(devices.PhaseInitial)
	}

	if err := h.devices.Refresh(r.Context(), devices.PhaseInitial); err != nil {
		h.renderer.Error(w, http.StatusServiceUnavailable, errors.Trace(err))

		return
	}

	list := h.devices.Devices()
	if list == nil {
		list = []media.DeviceInfo{}
	}

	h.renderer.JSON(w, http.StatusOK, list)
}

// putCapabilities replaces what may be produced. Running kinds keep running,
// the capabilities are checked when a kind is started.
func (h *handlers) putCapabilities(w http.ResponseWriter, r *http.Request) {
	var caps session.Capabilities

	if err := decode(r, &caps); err != nil {
		h.renderer.Error(w, http.StatusBadRequest, err)

		return
	}

	h.session.SetCapabilities(caps)

	h.renderer.JSON(w, http.StatusOK, h.state())
}

func (h *handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	snap, err := h.settings.Get(r.Context())
	if err != nil {
		h.renderer.Error(w, http.StatusServiceUnavailable, errors.Trace(err))

		return
	}

	h.renderer.JSON(w, http.StatusOK, snap)
}

func (h *handlers) patchSettings(w http.ResponseWriter, r *http.Request) {
	area, err := coordinator.ParseArea(chi.URLParam(r, "area"))
	if err != nil {
		h.renderer.Error(w, http.StatusNotFound, err)

		return
	}

	var patch settings.Patch

	if err := decode(r, &patch); err != nil {
		h.renderer.Error(w, http.StatusBadRequest, err)

		return
	}

	current, err := h.settings.Get(r.Context())
	if err != nil {
		h.renderer.Error(w, http.StatusServiceUnavailable, errors.Trace(err))

		return
	}

	if err := patch.Apply(current).Validate(); err != nil {
		h.renderer.Error(w, http.StatusBadRequest, err)

		return
	}

	h.controller.UpdateSettings(r.Context(), area, patch)

	h.renderer.JSON(w, http.StatusOK, h.state())
}

func (h *handlers) mediaOperation(w http.ResponseWriter, r *http.Request) {
	kind, err := media.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.renderer.Error(w, http.StatusNotFound, err)

		return
	}

	var run func(ctx context.Context)

	switch op := chi.URLParam(r, "op"); op {
	case "update":
		var opts coordinator.UpdateOptions

		if err := decode(r, &opts); err != nil {
			h.renderer.Error(w, http.StatusBadRequest, err)

			return
		}

		run = func(ctx context.Context) { h.controller.Update(ctx, kind, opts) }
	case "stop":
		run = func(ctx context.Context) { h.controller.Stop(ctx, kind) }
	case "pause":
		run = func(ctx context.Context) { h.controller.Pause(ctx, kind) }
	case "resume":
		run = func(ctx context.Context) { h.controller.Resume(ctx, kind) }
	default:
		h.renderer.Error(w, http.StatusNotFound, errors.NotFoundf("operation %q", op))

		return
	}

	run(r.Context())

	h.renderer.JSON(w, http.StatusOK, h.state())
}

func (h *handlers) previewOperation(w http.ResponseWriter, r *http.Request) {
	kind, err := media.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.renderer.Error(w, http.StatusNotFound, err)

		return
	}

	if kind != media.KindMic && kind != media.KindWebcam {
		h.renderer.Error(w, http.StatusNotFound, errors.NotFoundf("preview of %s", kind))

		return
	}

	ctx := r.Context()

	switch op := chi.URLParam(r, "op"); op {
	case "update":
		var opts coordinator.UpdateOptions

		if err := decode(r, &opts); err != nil {
			h.renderer.Error(w, http.StatusBadRequest, err)

			return
		}

		if kind == media.KindMic {
			h.controller.UpdatePreviewMic(ctx, opts)
		} else {
			h.controller.UpdatePreviewWebcam(ctx, opts)
		}
	case "stop":
		if kind == media.KindMic {
			h.controller.StopPreviewMic(ctx)
		} else {
			h.controller.StopPreviewWebcam(ctx)
		}
	default:
		h.renderer.Error(w, http.StatusNotFound, errors.NotFoundf("operation %q", op))

		return
	}

	h.renderer.JSON(w, http.StatusOK, h.state())
}

func (h *handlers) getOffer(w http.ResponseWriter, r *http.Request) {
	if h.transport == nil {
		h.renderer.Error(w, http.StatusNotFound, errors.NotFoundf("transport"))

		return
	}

	offer, err := h.transport.Offer(r.Context())
	if err != nil {
		h.renderer.Error(w, http.StatusServiceUnavailable, errors.Trace(err))

		return
	}

	h.renderer.JSON(w, http.StatusOK, offer)
}

func (h *handlers) postAnswer(w http.ResponseWriter, r *http.Request) {
	if h.transport == nil {
		h.renderer.Error(w, http.StatusNotFound, errors.NotFoundf("transport"))

		return
	}

	var answer webrtc.SessionDescription

	if err := decode(r, &answer); err != nil {
		h.renderer.Error(w, http.StatusBadRequest, err)

		return
	}

	if err := h.transport.Answer(answer); err != nil {
		status := http.StatusConflict
		if errors.IsNotValid(err) {
			status = http.StatusBadRequest
		}

		h.renderer.Error(w, status, errors.Trace(err))

		return
	}

	h.renderer.JSON(w, http.StatusOK, h.state())
}
