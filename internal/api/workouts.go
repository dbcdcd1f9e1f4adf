package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/persistence"
	"example.com/progression/internal/workout"
)

// CreateWorkoutRequest is the payload for POST /v1/workouts.
type CreateWorkoutRequest struct {
	Name       string                 `json:"name"`
	Exercises  []domain.ExerciseEntry `json:"exercises"`
	Status     string                 `json:"status"`
	Visibility string                 `json:"visibility"`
	Date       *time.Time             `json:"date"`
	Duration   int                    `json:"duration"`
	Notes      string                 `json:"notes"`
}

// UpdateWorkoutRequest is the payload for PATCH /v1/workouts/{id}. Absent fields are left unchanged.
type UpdateWorkoutRequest struct {
	Name       *string                `json:"name"`
	Exercises  []domain.ExerciseEntry `json:"exercises"`
	Duration   *int                   `json:"duration"`
	Date       *time.Time             `json:"date"`
	Visibility *string                `json:"visibility"`
	Notes      *string                `json:"notes"`
}

// CompleteSetRequest is the payload for PATCH /v1/workouts/{id}/sets.
type CompleteSetRequest struct {
	ExerciseIndex *int `json:"exercise_index"`
	SetIndex      *int `json:"set_index"`
	Completed     bool `json:"completed"`
}

// FinishWorkoutRequest is the optional payload for POST /v1/workouts/{id}/finish.
type FinishWorkoutRequest struct {
	Duration *int `json:"duration"`
}

func (h *Handler) createWorkout(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := h.svc.Workouts.Create(r.Context(), currentUser(r), workout.CreateInput{
		Name:       req.Name,
		Exercises:  req.Exercises,
		Status:     req.Status,
		Visibility: req.Visibility,
		Date:       req.Date,
		Duration:   req.Duration,
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkoutView(*created))
}

func (h *Handler) listWorkouts(w http.ResponseWriter, r *http.Request) {
	from, err := timeParam(r, "from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := timeParam(r, "to")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	list, next, err := h.svc.Workouts.List(r.Context(), currentUser(r), domain.WorkoutFilter{
		From:       from,
		To:         to,
		ExerciseID: r.URL.Query().Get("exercise_id"),
		Cursor:     cursor,
		Limit:      limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	items := make([]WorkoutView, 0, len(list))
	for _, wo := range list {
		items = append(items, toWorkoutView(wo))
	}
	writeJSON(w, http.StatusOK, ListWorkoutsResponse{Items: items, NextCursor: encodeCursor(next)})
}

func (h *Handler) getWorkout(w http.ResponseWriter, r *http.Request) {
	found, err := h.svc.Workouts.Get(r.Context(), currentUser(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkoutView(*found))
}

func (h *Handler) updateWorkout(w http.ResponseWriter, r *http.Request) {
	var req UpdateWorkoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := h.svc.Workouts.Update(r.Context(), currentUser(r), mux.Vars(r)["id"], workout.UpdateInput{
		Name:       req.Name,
		Exercises:  req.Exercises,
		Duration:   req.Duration,
		Date:       req.Date,
		Visibility: req.Visibility,
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkoutView(*updated))
}

func (h *Handler) deleteWorkout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Workouts.Delete(r.Context(), currentUser(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) startWorkout(w http.ResponseWriter, r *http.Request) {
	started, err := h.svc.Workouts.Start(r.Context(), currentUser(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkoutView(*started))
}

func (h *Handler) completeSet(w http.ResponseWriter, r *http.Request) {
	var req CompleteSetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ExerciseIndex == nil || req.SetIndex == nil {
		writeError(w, r, domain.Validation("exercise_index and set_index are required"))
		return
	}

	updated, err := h.svc.Workouts.CompleteSet(r.Context(), currentUser(r), mux.Vars(r)["id"], workout.CompleteSetInput{
		ExerciseIndex: *req.ExerciseIndex,
		SetIndex:      *req.SetIndex,
		Completed:     req.Completed,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkoutView(*updated))
}

func (h *Handler) finishWorkout(w http.ResponseWriter, r *http.Request) {
	var req FinishWorkoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.svc.Workouts.Finish(r.Context(), currentUser(r), mux.Vars(r)["id"], workout.FinishInput{Duration: req.Duration})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FinishResponse{
		Workout:    toWorkoutView(res.Workout),
		NewRecords: toRecordViews(res.NewRecords),
	})
}
