package httpapi

import (
	"encoding/json"
	"net/http"
)

// toJSON encodes v as the response body with the given status. Encoding
// failures after the header is written cannot be reported to the client,
// so the error is dropped.
func toJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
