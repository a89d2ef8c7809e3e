package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"quizmaster/internal/app"
	"quizmaster/internal/domain"
)

// PlayerHandler serves player progress and score duels over plain HTTP.
type PlayerHandler struct {
	service *app.SessionService
}

func NewPlayerHandler(service *app.SessionService) *PlayerHandler {
	return &PlayerHandler{service: service}
}

type sendChallengeRequest struct {
	ChallengerID   string `json:"challengerId"`
	ChallengerName string `json:"challengerName"`
	TargetID       string `json:"targetId"`
	CategoryID     string `json:"categoryId"`
	ScoreToBeat    int    `json:"scoreToBeat"`
}

// Progress handles GET /players/{userID}/progress.
func (h *PlayerHandler) Progress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.service.Progress(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// SendChallenge handles POST /challenges.
func (h *PlayerHandler) SendChallenge(w http.ResponseWriter, r *http.Request) {
	var req sendChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid challenge payload", http.StatusBadRequest)
		return
	}
	challenger := domain.Identity{UserID: req.ChallengerID, DisplayName: req.ChallengerName}
	challenge, err := h.service.SendChallenge(r.Context(), challenger, req.TargetID, req.CategoryID, req.ScoreToBeat)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, challenge)
}

// Challenge handles GET /challenges/{challengeID}.
func (h *PlayerHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.service.Challenge(r.Context(), r.PathValue("challengeID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrChallengeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrIdentityRequired), errors.Is(err, domain.ErrInvalidConfig):
		status = http.StatusBadRequest
	default:
		log.Printf("player request failed: %v", err)
	}
	http.Error(w, err.Error(), status)
}
