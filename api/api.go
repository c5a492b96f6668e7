// Package api is the thin HTTP surface that fronts a mint.Controller —
// the external-collaborator contract spec §1 explicitly treats as a
// black box (routing, auth, request/response wiring). This package is
// deliberately minimal: one handler per operation in spec §6's surface,
// a shared-secret auth middleware, and the JSON envelope the teacher's
// own API uses.
//
// Grounded on api/api.go's Error/WriteError/WriteJSON conventions and
// httprouter wiring, trimmed from a multi-module blockchain API down to
// a single controller's operation surface.
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Error is the JSON envelope returned on any non-2xx response.
type Error struct {
	Message string `json:"message"`
}

// Error implements the error interface, returning the Message field.
func (err Error) Error() string {
	return err.Message
}

// WriteError writes a JSON-encoded Error with the given status code.
func WriteError(w http.ResponseWriter, err Error, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(err) //nolint:errcheck
}

// WriteJSON writes obj as a JSON response body.
func WriteJSON(w http.ResponseWriter, obj interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if json.NewEncoder(w).Encode(obj) != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// RequireAPIKey wraps an http.Handler, rejecting any request whose
// X-API-Key header does not match key. An empty key disables the check
// entirely — only appropriate for local development.
func RequireAPIKey(h http.Handler, key string) http.Handler {
	if key == "" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("X-API-Key") != key {
			WriteError(w, Error{Message: "missing or invalid API key"}, http.StatusUnauthorized)
			return
		}
		h.ServeHTTP(w, req)
	})
}

// HttpGET is a thin client helper used by cmd/mintctl, mirroring the
// whitelisted-user-agent GET helper the teacher ships alongside its
// server wiring in the same package.
func HttpGET(url, apiKey string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "mintctl")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	return http.DefaultClient.Do(req)
}

// HttpPOST is a thin client helper used by cmd/mintctl for JSON request
// bodies.
func HttpPOST(url, apiKey string, body []byte) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "mintctl")
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	return http.DefaultClient.Do(req)
}
