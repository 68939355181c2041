package indi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type setRequest struct {
	Values json.RawMessage `json:"values"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler exposes a host's properties to clients as JSON.
type Handler struct {
	host *Host
}

func NewHandler(host *Host) *Handler {
	return &Handler{host: host}
}

func (h *Handler) RegisterRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /properties", h.handleList)
	mux.HandleFunc("GET /properties/{name}", h.handleGet)
	mux.HandleFunc("PUT /properties/{name}", h.handleSet)

	mux.HandleFunc("PUT /connect", h.handleConnect)
	mux.HandleFunc("PUT /disconnect", h.handleDisconnect)
	mux.HandleFunc("PUT /config", h.handleSaveConfig)

	return mux
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.host.Registry().Properties())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	p, ok := h.host.Registry().Get(name)
	if !ok {
		writeError(w, fmt.Errorf("%w: %s", ErrUnknownProperty, name))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleSet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	p, ok := h.host.Registry().Get(name)
	if !ok {
		writeError(w, fmt.Errorf("%w: %s", ErrUnknownProperty, name))
		return
	}
	if p.Header().Perm == ReadOnly {
		writeError(w, fmt.Errorf("%w: %s", ErrReadOnly, name))
		return
	}

	var req setRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	var err error
	switch p.Header().Type {
	case NumberKind:
		var values map[string]float64
		if err = json.Unmarshal(req.Values, &values); err == nil {
			err = h.host.SetNumber(name, values)
		}
	case TextKind:
		var texts map[string]string
		if err = json.Unmarshal(req.Values, &texts); err == nil {
			err = h.host.SetText(name, texts)
		}
	case SwitchKind:
		var states map[string]SwitchState
		if err = json.Unmarshal(req.Values, &states); err == nil {
			err = h.host.SetSwitch(name, states)
		}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid values: %v", err)})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	// The write may have completed with Alert; the snapshot carries the state.
	p, _ = h.host.Registry().Get(name)
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	if err := h.host.Connect(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.host.Disconnect(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.host.SaveConfig(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrUnknownProperty):
		status = http.StatusNotFound
	case errors.Is(err, ErrMissingElement), errors.Is(err, ErrReadOnly), errors.Is(err, ErrInvalidValue):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNotConnected):
		status = http.StatusConflict
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
