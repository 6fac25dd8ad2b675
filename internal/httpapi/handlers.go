package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"valorant-hub/internal/engine"
	"valorant-hub/internal/repository"
	"valorant-hub/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type Handlers struct {
	queueSvc *service.QueueService
	matchSvc *service.MatchService
	userRepo *repository.UserRepository
	logger   zerolog.Logger
}

func NewHandlers(queueSvc *service.QueueService, matchSvc *service.MatchService, userRepo *repository.UserRepository, logger zerolog.Logger) *Handlers {
	return &Handlers{
		queueSvc: queueSvc,
		matchSvc: matchSvc,
		userRepo: userRepo,
		logger:   logger,
	}
}

type joinQueueRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	GameName string `json:"game_name"`
	GameTag  string `json:"game_tag"`
}

func (h *Handlers) JoinQueue(w http.ResponseWriter, r *http.Request) {
	var req joinQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Username == "" {
		writeJSONError(w, http.StatusBadRequest, "user_id and username are required")
		return
	}

	if err := h.queueSvc.Join(r.Context(), req.UserID, req.Username, req.GameName, req.GameTag); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

type leaveQueueRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handlers) LeaveQueue(w http.ResponseWriter, r *http.Request) {
	var req leaveQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.queueSvc.Leave(r.Context(), req.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

func (h *Handlers) GetQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := h.queueSvc.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}

type readyRequest struct {
	PlayerID string `json:"player_id"`
}

func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	var req readyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.matchSvc.Accept(r.Context(), chi.URLParam(r, "id"), req.PlayerID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type draftPickRequest struct {
	CaptainID string `json:"captain_id"`
	PlayerID  string `json:"player_id"`
}

func (h *Handlers) DraftPick(w http.ResponseWriter, r *http.Request) {
	var req draftPickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.matchSvc.DraftPick(r.Context(), chi.URLParam(r, "id"), req.CaptainID, req.PlayerID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "picked"})
}

type vetoBanRequest struct {
	CaptainID string `json:"captain_id"`
	Map       string `json:"map"`
}

func (h *Handlers) VetoBan(w http.ResponseWriter, r *http.Request) {
	var req vetoBanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.matchSvc.VetoBan(r.Context(), chi.URLParam(r, "id"), req.CaptainID, req.Map); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "banned"})
}

type reportRequest struct {
	PlayerID string `json:"player_id"`
	ScoreA   int    `json:"score_a"`
	ScoreB   int    `json:"score_b"`
}

func (h *Handlers) Report(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.matchSvc.Report(r.Context(), chi.URLParam(r, "id"), req.PlayerID, req.ScoreA, req.ScoreB); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reported"})
}

func (h *Handlers) ForceClock(w http.ResponseWriter, r *http.Request) {
	if err := h.matchSvc.ForceReportGate(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "clock advanced"})
}

func (h *Handlers) GetMatch(w http.ResponseWriter, r *http.Request) {
	m, err := h.matchSvc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.userRepo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// writeError maps the engine/service error taxonomy onto HTTP statuses.
// Callers can distinguish "not your turn" from "wrong phase" from "match no
// longer exists".
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *engine.ValidationError

	switch {
	case errors.Is(err, service.ErrMatchNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNoLinkedAccount),
		errors.Is(err, engine.ErrNotParticipant),
		errors.Is(err, engine.ErrNotCaptain):
		writeJSONError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &validationErr),
		errors.Is(err, engine.ErrIllegalPick),
		errors.Is(err, engine.ErrIllegalBan):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrWrongPhase),
		errors.Is(err, engine.ErrWrongTurn),
		errors.Is(err, engine.ErrVetoComplete),
		errors.Is(err, engine.ErrReportTooEarly),
		errors.Is(err, engine.ErrDuplicateReport),
		errors.Is(err, engine.ErrAlreadyFinalized):
		writeJSONError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
