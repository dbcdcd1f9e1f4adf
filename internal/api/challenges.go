package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"example.com/progression/internal/challenges"
	"example.com/progression/internal/domain"
)

// CreateChallengeRequest is the body of POST /v1/challenges.
type CreateChallengeRequest struct {
	ChallengedID string  `json:"challenged_id"`
	Type         string  `json:"type"`
	TargetValue  float64 `json:"target_value"`
	Unit         string  `json:"unit,omitempty"`
	ExerciseID   string  `json:"exercise_id,omitempty"`
	Duration     int     `json:"duration,omitempty"`
}

// ChallengeView is a challenge as either participant sees it.
type ChallengeView struct {
	ChallengeID        string     `json:"challenge_id"`
	ChallengerID       string     `json:"challenger_id"`
	ChallengedID       string     `json:"challenged_id"`
	Type               string     `json:"type"`
	TargetValue        float64    `json:"target_value"`
	Unit               string     `json:"unit,omitempty"`
	ExerciseID         string     `json:"exercise_id,omitempty"`
	Duration           int        `json:"duration"`
	Status             string     `json:"status"`
	ChallengerProgress float64    `json:"challenger_progress"`
	ChallengedProgress float64    `json:"challenged_progress"`
	WinnerID           string     `json:"winner_id,omitempty"`
	StartDate          *time.Time `json:"start_date,omitempty"`
	EndDate            *time.Time `json:"end_date,omitempty"`
	AcceptedAt         *time.Time `json:"accepted_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func toChallengeView(c domain.Challenge) ChallengeView {
	return ChallengeView{
		ChallengeID:        c.ID,
		ChallengerID:       c.ChallengerID,
		ChallengedID:       c.ChallengedID,
		Type:               string(c.Type),
		TargetValue:        c.TargetValue,
		Unit:               c.Unit,
		ExerciseID:         c.ExerciseID,
		Duration:           c.Duration,
		Status:             string(c.Status),
		ChallengerProgress: c.ChallengerProgress,
		ChallengedProgress: c.ChallengedProgress,
		WinnerID:           c.WinnerID,
		StartDate:          c.StartDate,
		EndDate:            c.EndDate,
		AcceptedAt:         c.AcceptedAt,
		CompletedAt:        c.CompletedAt,
		CreatedAt:          c.CreatedAt,
	}
}

func (h *Handler) createChallenge(w http.ResponseWriter, r *http.Request) {
	var req CreateChallengeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.Challenges.Create(r.Context(), currentUser(r), challenges.CreateInput{
		ChallengedID: req.ChallengedID,
		Type:         domain.ChallengeType(req.Type),
		TargetValue:  req.TargetValue,
		Unit:         req.Unit,
		ExerciseID:   req.ExerciseID,
		Duration:     req.Duration,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChallengeView(c))
}

func (h *Handler) listChallenges(w http.ResponseWriter, r *http.Request) {
	status := domain.ChallengeStatus(r.URL.Query().Get("status"))
	list, err := h.svc.Challenges.List(r.Context(), currentUser(r), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]ChallengeView, 0, len(list))
	for _, c := range list {
		items = append(items, toChallengeView(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) getChallenge(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Challenges.Get(r.Context(), currentUser(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChallengeView(c))
}

func (h *Handler) acceptChallenge(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Challenges.Accept(r.Context(), currentUser(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChallengeView(c))
}

func (h *Handler) rejectChallenge(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Challenges.Reject(r.Context(), currentUser(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChallengeView(c))
}
