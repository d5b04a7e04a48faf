// Package dac provides a generic HTTP interface to D/A converter channel
// controllers
//
// Channels are addressed by index in the URL; the channel set and any
// per-channel configuration is fixed by the server at startup.
package dac

import (
	"encoding/json"
	"go/types"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/embedlab/radac/generichttp"
)

// Channel is the lifecycle a DAC channel controller exposes
type Channel interface {
	// Open initializes the channel; it fails if already open
	Open() error

	// Write stores a 16-bit value in the channel data register
	Write(value uint16) error

	// Start enables the channel output
	Start() error

	// Stop disables the channel output
	Stop() error

	// Close stops the channel and returns it to the closed state
	Close() error
}

// StartedReporter is a channel which can report its output-enable state
type StartedReporter interface {
	Started() (bool, error)
}

// Versioner reports the driver version
type Versioner interface {
	Version() (string, error)
}

// HTTPDAC wraps a set of channels in an HTTP interface
type HTTPDAC struct {
	chans map[int]Channel

	RouteTable generichttp.RouteTable
}

// RT yields the route table, implementing generichttp.HTTPer
func (h HTTPDAC) RT() generichttp.RouteTable {
	return h.RouteTable
}

// NewHTTPDAC sets up routes for each channel operation.  The started route
// is only added when every channel can report it; the version route only
// when v is non-nil.
func NewHTTPDAC(chans map[int]Channel, v Versioner) HTTPDAC {
	h := HTTPDAC{chans: chans}
	rt := generichttp.RouteTable{}
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/chan/{channel}/open"}] = h.open
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/chan/{channel}/write"}] = h.write
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/chan/{channel}/start"}] = h.start
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/chan/{channel}/stop"}] = h.stop
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/chan/{channel}/close"}] = h.close
	allStarted := len(chans) > 0
	for _, c := range chans {
		if _, ok := c.(StartedReporter); !ok {
			allStarted = false
		}
	}
	if allStarted {
		rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/chan/{channel}/started"}] = h.started
	}
	if v != nil {
		rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/version"}] = Version(v)
	}
	h.RouteTable = rt
	return h
}

// channelFrom resolves the {channel} URL parameter to a controller
func (h HTTPDAC) channelFrom(w http.ResponseWriter, r *http.Request) (Channel, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "channel"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	c, ok := h.chans[idx]
	if !ok {
		http.Error(w, "channel not exposed by this server", http.StatusNotFound)
		return nil, false
	}
	return c, true
}

func (h HTTPDAC) open(w http.ResponseWriter, r *http.Request) {
	c, ok := h.channelFrom(w, r)
	if !ok {
		return
	}
	if err := c.Open(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h HTTPDAC) write(w http.ResponseWriter, r *http.Request) {
	c, ok := h.channelFrom(w, r)
	if !ok {
		return
	}
	var input generichttp.Uint16T
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := c.Write(input.U16); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h HTTPDAC) start(w http.ResponseWriter, r *http.Request) {
	c, ok := h.channelFrom(w, r)
	if !ok {
		return
	}
	if err := c.Start(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h HTTPDAC) stop(w http.ResponseWriter, r *http.Request) {
	c, ok := h.channelFrom(w, r)
	if !ok {
		return
	}
	if err := c.Stop(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h HTTPDAC) close(w http.ResponseWriter, r *http.Request) {
	c, ok := h.channelFrom(w, r)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h HTTPDAC) started(w http.ResponseWriter, r *http.Request) {
	c, ok := h.channelFrom(w, r)
	if !ok {
		return
	}
	sr := c.(StartedReporter)
	b, err := sr.Started()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hp := generichttp.HumanPayload{T: types.Bool, Bool: b}
	hp.EncodeAndRespond(w, r)
}

// Version returns a handlerfunc reporting the driver version
func Version(v Versioner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := v.Version()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := generichttp.HumanPayload{T: types.String, String: s}
		hp.EncodeAndRespond(w, r)
	}
}
