package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// timeLayout is the wire format for timestamps in JSON responses.
const timeLayout = time.RFC3339

// decodeJSON decodes a JSON request body into the destination struct.
// The reader will be closed after decoding.
func decodeJSON(r io.ReadCloser, dest any) error {
	defer r.Close()
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

// chiURLParam reads a named path parameter from the request's routing context.
func chiURLParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
