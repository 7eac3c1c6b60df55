package api

import (
	"encoding/json"
	"net/http"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/logger"
	"github.com/oxtoacart/bpool"
)

const defaultBufferPoolSize = 64

// Renderer encodes responses into pooled buffers so a failed encoding never
// leaves a half written body.
type Renderer struct {
	log     logger.Logger
	bufPool *bpool.BufferPool
}

func NewRenderer(log logger.Logger) *Renderer {
	return &Renderer{
		log:     log.WithNamespaceAppended("renderer"),
		bufPool: bpool.NewBufferPool(defaultBufferPoolSize),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (rr *Renderer) JSON(w http.ResponseWriter, status int, data interface{}) {
	buf := rr.bufPool.Get()
	defer rr.bufPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(data); err != nil {
		rr.log.Error("Encode response", errors.Trace(err), nil)
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := buf.WriteTo(w); err != nil {
		rr.log.Error("Write response", errors.Trace(err), nil)
	}
}

func (rr *Renderer) Error(w http.ResponseWriter, status int, err error) {
	rr.log.Warn("Request failed", logger.Ctx{
		"status": status,
		"error":  err.Error(),
	})

	rr.JSON(w, status, errorResponse{Error: err.Error()})
}
