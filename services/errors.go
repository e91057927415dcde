package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrorKind is the stable, client-visible class of a rejected action.
type ErrorKind string

const (
	KindAuthenticationRequired   ErrorKind = "AUTHENTICATION_REQUIRED"
	KindAlreadyClaimedToday      ErrorKind = "ALREADY_CLAIMED_TODAY"
	KindAllowanceExhausted       ErrorKind = "ALLOWANCE_EXHAUSTED"
	KindAchievementNotClaimable  ErrorKind = "ACHIEVEMENT_NOT_CLAIMABLE"
	KindUnknownQuestionReference ErrorKind = "UNKNOWN_QUESTION_REFERENCE"
	KindInvalidInput             ErrorKind = "INVALID_INPUT"
	KindNotFound                 ErrorKind = "NOT_FOUND"
	KindConflict                 ErrorKind = "CONFLICT"
)

// Error is a domain rejection. Two Errors match under errors.Is when their kinds match.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrAuthenticationRequired   = &Error{Kind: KindAuthenticationRequired, Message: "User not authenticated"}
	ErrAlreadyClaimedToday      = &Error{Kind: KindAlreadyClaimedToday, Message: "You already claimed today's reward"}
	ErrAllowanceExhausted       = &Error{Kind: KindAllowanceExhausted, Message: "No spin chances available"}
	ErrAchievementNotClaimable  = &Error{Kind: KindAchievementNotClaimable, Message: "Achievement cannot be claimed"}
	ErrUnknownQuestionReference = &Error{Kind: KindUnknownQuestionReference, Message: "Answer references an unknown question"}
	ErrInvalidInput             = &Error{Kind: KindInvalidInput, Message: "Invalid input"}
	ErrNotFound                 = &Error{Kind: KindNotFound, Message: "Not found"}

	// ErrConcurrentUpdate means the profile changed between read and write. Mutate retries on it.
	ErrConcurrentUpdate = &Error{Kind: KindConflict, Message: "Profile was updated concurrently, please retry"}
)

// isConflict reports whether err is a lost optimistic race or a unique-key collision.
func isConflict(err error) bool {
	if errors.Is(err, ErrConcurrentUpdate) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Drivers without error translation.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
