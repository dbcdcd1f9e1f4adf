package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/persistence"
)

// CommentRequest is the payload for POST /v1/workouts/{id}/comments.
type CommentRequest struct {
	Content string `json:"content"`
}

// FriendRequestRequest is the payload for POST /v1/friends/requests.
type FriendRequestRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) likeWorkout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Social.Like(r.Context(), currentUser(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unlikeWorkout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Social.Unlike(r.Context(), currentUser(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Social.Comments(r.Context(), currentUser(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]CommentView, 0, len(list))
	for _, c := range list {
		items = append(items, toCommentView(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	comment, err := h.svc.Social.AddComment(r.Context(), currentUser(r), mux.Vars(r)["id"], req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommentView(comment))
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Social.DeleteComment(r.Context(), currentUser(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) feed(w http.ResponseWriter, r *http.Request) {
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

	page, err := h.svc.Social.Feed(r.Context(), currentUser(r), cursor, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]FeedItemView, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, FeedItemView{
			Workout:       toWorkoutView(item.Workout),
			LikesCount:    item.LikesCount,
			CommentsCount: item.CommentsCount,
			IsLikedByUser: item.IsLikedByUser,
		})
	}
	writeJSON(w, http.StatusOK, FeedResponse{Items: items, NextCursor: encodeCursor(page.NextCursor)})
}

func (h *Handler) writeFriendships(w http.ResponseWriter, r *http.Request, list []domain.Friendship) {
	user := currentUser(r)
	items := make([]FriendshipView, 0, len(list))
	for _, f := range list {
		items = append(items, toFriendshipView(f, user))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) listFriends(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Social.Friends(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeFriendships(w, r, list)
}

func (h *Handler) pendingRequests(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Social.PendingRequests(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeFriendships(w, r, list)
}

func (h *Handler) sendFriendRequest(w http.ResponseWriter, r *http.Request) {
	var req FriendRequestRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := h.svc.Social.SendFriendRequest(r.Context(), currentUser(r), req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFriendshipView(f, currentUser(r)))
}

func (h *Handler) acceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.Social.AcceptFriendRequest(r.Context(), currentUser(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFriendshipView(f, currentUser(r)))
}

func (h *Handler) rejectFriendRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Social.RejectFriendRequest(r.Context(), currentUser(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeFriend(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Social.RemoveFriend(r.Context(), currentUser(r), mux.Vars(r)["user_id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
