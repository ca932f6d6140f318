package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"keyfetch/internal/upstream"
	"keyfetch/loader"
)

// maxPrimeBodySize caps PUT /keys/{key} payloads
const maxPrimeBodySize = 1 << 20

// Handler serves the key-lookup API on top of a loader. Every GET funnels
// through loader.Load, so concurrent requests for overlapping keys coalesce
// into shared upstream batches.
type Handler struct {
	loader *loader.Loader[string, json.RawMessage]
	mux    *http.ServeMux
	logger zerolog.Logger
}

// NewHandler creates the HTTP handler around a loader
func NewHandler(l *loader.Loader[string, json.RawMessage], logger zerolog.Logger) *Handler {
	h := &Handler{
		loader: l,
		mux:    http.NewServeMux(),
		logger: logger.With().Str("component", "http").Logger(),
	}

	h.mux.HandleFunc("GET /keys/{key}", h.handleGet)
	h.mux.HandleFunc("POST /keys", h.handleBatch)
	h.mux.HandleFunc("PUT /keys/{key}", h.handlePrime)
	h.mux.HandleFunc("DELETE /keys/{key}", h.handleClear)
	h.mux.HandleFunc("DELETE /keys", h.handleClearAll)
	h.mux.HandleFunc("GET /healthz", h.handleHealth)

	return h
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	value, err := h.loader.Load(r.Context(), key)
	if err != nil {
		h.writeLoadError(w, key, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(value)
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var keys []string
	if err := json.NewDecoder(r.Body).Decode(&keys); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON array of keys")
		return
	}
	if len(keys) == 0 {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("[]"))
		return
	}

	values, err := h.loader.LoadMany(r.Context(), keys)
	if err != nil {
		h.writeLoadError(w, "", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(values)
}

func (h *Handler) handlePrime(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPrimeBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}

	if !h.loader.Prime(key, body) {
		writeError(w, http.StatusConflict, "key already cached")
		return
	}

	h.logger.Debug().Str("key", key).Msg("key primed")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	h.loader.Clear(key)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClearAll(w http.ResponseWriter, r *http.Request) {
	h.loader.ClearAll()
	h.logger.Debug().Msg("cache cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// writeLoadError maps loader failures onto HTTP statuses: a per-key upstream
// error is the key's own fault (404), anything else is an upstream/transport
// problem (502).
func (h *Handler) writeLoadError(w http.ResponseWriter, key string, err error) {
	var keyErr *upstream.KeyError
	if errors.As(err, &keyErr) {
		writeError(w, http.StatusNotFound, keyErr.Message)
		return
	}

	h.logger.Error().Err(err).Str("key", key).Msg("load failed")
	writeError(w, http.StatusBadGateway, err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
