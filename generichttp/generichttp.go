// Package generichttp defines the route table and payload conventions used
// to wrap devices in an HTTP interface
package generichttp

import (
	"encoding/json"
	"fmt"
	"go/types"
	"log"
	"net/http"

	"github.com/go-chi/chi"
)

// MethodPath is an HTTP method and path pair, the key of a RouteTable
type MethodPath struct {
	Method string
	Path   string
}

// RouteTable maps method/path pairs to their handlers
type RouteTable map[MethodPath]http.HandlerFunc

// Bind attaches each route in the table to a chi router
func (rt RouteTable) Bind(r chi.Router) {
	for mp, handler := range rt {
		r.Method(mp.Method, mp.Path, handler)
	}
}

// Endpoints lists the routes in the table as "METHOD path" strings
func (rt RouteTable) Endpoints() []string {
	out := make([]string, 0, len(rt))
	for mp := range rt {
		out = append(out, mp.Method+" "+mp.Path)
	}
	return out
}

// HTTPer is a type which can yield its route table for injection of extra
// routes or middleware
type HTTPer interface {
	RT() RouteTable
}

// BoolT is a json-tagged boolean body
type BoolT struct {
	Bool bool `json:"bool"`
}

// IntT is a json-tagged int body
type IntT struct {
	Int int `json:"int"`
}

// FloatT is a json-tagged float body
type FloatT struct {
	F64 float64 `json:"f64"`
}

// StrT is a json-tagged string body
type StrT struct {
	Str string `json:"str"`
}

// Uint16T is a json-tagged uint16 body, used for raw data register values
type Uint16T struct {
	U16 uint16 `json:"u16"`
}

// HumanPayload is a response envelope for a single typed value
type HumanPayload struct {
	T      types.BasicKind
	Bool   bool
	Int    int
	Uint16 uint16
	Float  float64
	String string
}

// EncodeAndRespond writes the payload to w as json with the appropriate tag
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	var obj interface{}
	switch hp.T {
	case types.Bool:
		obj = BoolT{Bool: hp.Bool}
	case types.Int:
		obj = IntT{Int: hp.Int}
	case types.Uint16:
		obj = Uint16T{U16: hp.Uint16}
	case types.Float64:
		obj = FloatT{F64: hp.Float}
	case types.String:
		obj = StrT{Str: hp.String}
	default:
		http.Error(w, fmt.Sprintf("unknown payload kind %v", hp.T), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		log.Println("error encoding response payload to json", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
