package domain

import (
	"errors"
	"fmt"
)

// ErrorKind groups domain errors by how callers should react to them.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindForbidden  ErrorKind = "forbidden"
)

// Error is a domain failure carrying a stable code.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches errors by code so wrapped or re-worded errors still compare equal.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

var (
	ErrWorkoutNotFound      = &Error{Kind: KindNotFound, Code: "WORKOUT_NOT_FOUND", Message: "workout not found"}
	ErrExerciseNotFound     = &Error{Kind: KindValidation, Code: "EXERCISE_NOT_FOUND", Message: "one or more exercises not found"}
	ErrInvalidExerciseIndex = &Error{Kind: KindValidation, Code: "INVALID_EXERCISE_INDEX", Message: "exercise not found"}
	ErrInvalidSetIndex      = &Error{Kind: KindValidation, Code: "INVALID_SET_INDEX", Message: "set not found"}
	ErrInvalidTransition    = &Error{Kind: KindConflict, Code: "INVALID_STATE_TRANSITION", Message: "workout status does not allow this operation"}

	ErrAlreadyLiked    = &Error{Kind: KindConflict, Code: "ALREADY_LIKED", Message: "already liked"}
	ErrNotLiked        = &Error{Kind: KindNotFound, Code: "NOT_LIKED", Message: "like not found"}
	ErrForbidden       = &Error{Kind: KindForbidden, Code: "FORBIDDEN", Message: "workout is private"}
	ErrCommentNotFound = &Error{Kind: KindNotFound, Code: "COMMENT_NOT_FOUND", Message: "comment not found"}

	ErrInvalidFriendRequest = &Error{Kind: KindValidation, Code: "INVALID_FRIEND_REQUEST", Message: "cannot add yourself as friend"}
	ErrAlreadyFriends       = &Error{Kind: KindConflict, Code: "ALREADY_FRIENDS", Message: "already friends"}
	ErrRequestPending       = &Error{Kind: KindConflict, Code: "REQUEST_PENDING", Message: "request already sent"}
	ErrUserBlocked          = &Error{Kind: KindConflict, Code: "USER_BLOCKED", Message: "cannot send request"}
	ErrRequestNotFound      = &Error{Kind: KindNotFound, Code: "REQUEST_NOT_FOUND", Message: "friend request not found"}
	ErrNotFriends           = &Error{Kind: KindNotFound, Code: "NOT_FRIENDS", Message: "friendship not found"}

	ErrInvalidChallenge  = &Error{Kind: KindValidation, Code: "INVALID_CHALLENGE", Message: "cannot challenge yourself"}
	ErrChallengeNotFound = &Error{Kind: KindNotFound, Code: "CHALLENGE_NOT_FOUND", Message: "challenge not found"}

	ErrAlreadyUnlocked      = &Error{Kind: KindConflict, Code: "ALREADY_UNLOCKED", Message: "achievement already unlocked"}
	ErrNotificationNotFound = &Error{Kind: KindNotFound, Code: "NOTIFICATION_NOT_FOUND", Message: "notification not found"}
)

// Validation builds a validation error with the generic VALIDATION_FAILED code.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: "VALIDATION_FAILED", Message: fmt.Sprintf(format, args...)}
}

// AsError unwraps err into a domain error when it is one.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// KindOf reports the kind of a domain error, or "" for infrastructure failures.
func KindOf(err error) ErrorKind {
	if de, ok := AsError(err); ok {
		return de.Kind
	}
	return ""
}
