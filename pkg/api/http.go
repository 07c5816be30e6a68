// Package api exposes the stability pool's read-only endpoints (spec §6)
// over HTTP, grounded on the teacher's own pkg/api: httprouter dispatch,
// JSON bodies, and a uniform {"message": ...} error envelope.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// Error is the JSON envelope written for any non-2xx response.
type Error struct {
	Message string `json:"message"`
}

func (e Error) Error() string { return e.Message }

// WriteError writes err as a JSON Error body with the given status code.
func WriteError(w http.ResponseWriter, err error, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Error{Message: err.Error()})
}

// WriteJSON writes obj as a 200 OK JSON body.
func WriteJSON(w http.ResponseWriter, obj interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if json.NewEncoder(w).Encode(obj) != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// UnrecognizedCallHandler handles requests to unknown routes.
func UnrecognizedCallHandler(w http.ResponseWriter, req *http.Request) {
	WriteError(w, Error{Message: "404 - unrecognized API call"}, http.StatusNotFound)
}

// NewServeMux wraps an httprouter.Router with the 404 handler above, the
// same composition the teacher's pkg/daemon/server.go uses for its own
// httprouter instance.
func NewServeMux() *httprouter.Router {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(UnrecognizedCallHandler)
	return router
}
