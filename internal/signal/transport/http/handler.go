package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"signalgateway/internal/signal"
	"signalgateway/internal/signal/service"
	"signalgateway/pkg/middleware"
)

type Handler struct {
	Gateway *service.Gateway
	logger  *zap.Logger
}

func NewHandler(gw *service.Gateway, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Gateway: gw, logger: logger}
}

// Routes mounts the signal endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/signals", h.CreateSignal)
	r.Post("/signals/batch", h.CreateSignals)
	r.Get("/signals", h.GetSignals)
	r.Get("/signals/latest", h.GetLatest)
	r.Get("/signals/stats", h.GetStats)
	r.Delete("/signals", h.ClearOldSignals)
	r.Delete("/signals/{id}", h.DeleteSignal)
}

type batchResponse struct {
	Pushed int      `json:"pushed"`
	Total  int      `json:"total"`
	Errors []string `json:"errors,omitempty"`
}

func (h *Handler) CreateSignal(w http.ResponseWriter, r *http.Request) {
	var req signal.Signal
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	h.logger.Debug("signal received", zap.String("producer", middleware.Producer(r.Context())))

	rec, err := h.Gateway.PushSignal(r.Context(), req)
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, rec)
}

func (h *Handler) CreateSignals(w http.ResponseWriter, r *http.Request) {
	var req []signal.Signal
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid JSON, expected an array of signals")
		return
	}

	pushed, err := h.Gateway.PushMultiple(r.Context(), req)
	resp := batchResponse{Pushed: pushed, Total: len(req)}
	if err != nil {
		resp.Errors = splitJoined(err)
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetLatest(w http.ResponseWriter, r *http.Request) {
	limit := service.DefaultLatestLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			middleware.WriteFieldError(w, errors.New("limit must be a positive integer"), "limit", s)
			return
		}
		limit = n
	}

	recs, err := h.Gateway.GetLatest(r.Context(), limit)
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, recs)
}

func (h *Handler) GetSignals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f service.Filter

	if s := q.Get("style"); s != "" {
		st, err := signal.ParseStyle(s)
		if err != nil {
			middleware.WriteFieldError(w, err, "style", s)
			return
		}
		f.Style = &st
	}
	if s := q.Get("rating"); s != "" {
		rt, err := signal.ParseRating(s)
		if err != nil {
			middleware.WriteFieldError(w, err, "rating", s)
			return
		}
		f.Rating = &rt
	}
	if s := q.Get("min_score"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			middleware.WriteFieldError(w, errors.New("min_score must be an integer"), "min_score", s)
			return
		}
		f.MinScore = n
	}

	recs, err := h.Gateway.GetFiltered(r.Context(), f)
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, recs)
}

func (h *Handler) DeleteSignal(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		middleware.WriteFieldError(w, errors.New("invalid signal id"), "id", idStr)
		return
	}

	if err := h.Gateway.DeleteByID(r.Context(), id); err != nil {
		h.writeGatewayError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "signal deleted"})
}

func (h *Handler) ClearOldSignals(w http.ResponseWriter, r *http.Request) {
	days := service.DefaultRetentionDays
	if s := r.URL.Query().Get("older_than_days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			middleware.WriteFieldError(w, errors.New("older_than_days must be a positive integer"), "older_than_days", s)
			return
		}
		days = n
	}

	removed, err := h.Gateway.ClearOlderThan(r.Context(), days)
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]int{"removed": removed, "days": days})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]int64{"pushed": h.Gateway.Pushed()})
}

func (h *Handler) writeGatewayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidSignal):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrRemoteCall), errors.Is(err, service.ErrEmptyResult):
		middleware.WriteError(w, http.StatusBadGateway, "remote store unavailable")
	default:
		h.logger.Error("unexpected gateway error", zap.Error(err))
		middleware.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// splitJoined unpacks an errors.Join result into messages.
func splitJoined(err error) []string {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range j.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
