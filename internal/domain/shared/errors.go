// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates every failure a public reward operation can report.
// A failed call carries exactly one kind.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotAuthorized
	KindInvalidValue
	KindInvalidDifficulty
	KindNotEnrolled
	KindAlreadyCompleted
	KindInvalidQuizResults
	KindInvalidProof
	KindQuizFailed
	KindCourseNotFound
	KindTokenMintFailed
	KindProgressUpdateFailed
)

// String returns the stable name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNotAuthorized:
		return "NotAuthorized"
	case KindInvalidValue:
		return "InvalidValue"
	case KindInvalidDifficulty:
		return "InvalidDifficulty"
	case KindNotEnrolled:
		return "NotEnrolled"
	case KindAlreadyCompleted:
		return "AlreadyCompleted"
	case KindInvalidQuizResults:
		return "InvalidQuizResults"
	case KindInvalidProof:
		return "InvalidProof"
	case KindQuizFailed:
		return "QuizFailed"
	case KindCourseNotFound:
		return "CourseNotFound"
	case KindTokenMintFailed:
		return "TokenMintFailed"
	case KindProgressUpdateFailed:
		return "ProgressUpdateFailed"
	default:
		return "Unknown"
	}
}

// Code returns the numeric error code exposed to contract-call hosts.
// The values match the codes of the deployed reward contract.
func (k ErrorKind) Code() uint32 {
	switch k {
	case KindNotEnrolled:
		return 1001
	case KindQuizFailed:
		return 1002
	case KindAlreadyCompleted:
		return 1003
	case KindInvalidQuizResults:
		return 1005
	case KindInvalidProof:
		return 1006
	case KindCourseNotFound:
		return 1007
	case KindInvalidValue:
		return 1009
	case KindTokenMintFailed:
		return 1010
	case KindProgressUpdateFailed:
		return 1011
	case KindInvalidDifficulty:
		return 1012
	case KindNotAuthorized:
		return 1013
	default:
		return 0
	}
}

// Kinds returns all reportable kinds in declaration order.
func Kinds() []ErrorKind {
	return []ErrorKind{
		KindNotAuthorized,
		KindInvalidValue,
		KindInvalidDifficulty,
		KindNotEnrolled,
		KindAlreadyCompleted,
		KindInvalidQuizResults,
		KindInvalidProof,
		KindQuizFailed,
		KindCourseNotFound,
		KindTokenMintFailed,
		KindProgressUpdateFailed,
	}
}

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string    // e.g., "config", "completion", "distributor"
	Op      string    // Operation that failed, e.g., "SetAdmin", "Commit"
	Kind    ErrorKind // Kind used for errors.Is() checking
	Message string    // Human-readable message
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Is matches any DomainError of the same kind, so callers can compare
// against the package sentinels regardless of which operation failed.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind != KindUnknown && e.Kind == other.Kind
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind ErrorKind, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// Configuration errors
var (
	ErrNotAuthorized     = NewDomainError("config", "Authorize", KindNotAuthorized, "caller is not the administrator")
	ErrInvalidValue      = NewDomainError("config", "Validate", KindInvalidValue, "value must be positive")
	ErrInvalidDifficulty = NewDomainError("config", "Validate", KindInvalidDifficulty, "difficulty must be between 1 and 5")
)

// Completion transaction errors
var (
	ErrNotEnrolled          = NewDomainError("distributor", "Complete", KindNotEnrolled, "user is not enrolled in course")
	ErrAlreadyCompleted     = NewDomainError("completion", "Commit", KindAlreadyCompleted, "course already completed by user")
	ErrInvalidQuizResults   = NewDomainError("distributor", "Complete", KindInvalidQuizResults, "quiz results must contain exactly 10 answers")
	ErrInvalidProof         = NewDomainError("distributor", "Complete", KindInvalidProof, "proof cannot be empty")
	ErrQuizFailed           = NewDomainError("distributor", "Complete", KindQuizFailed, "quiz not passed")
	ErrCourseNotFound       = NewDomainError("distributor", "Complete", KindCourseNotFound, "no reward configuration for course")
	ErrTokenMintFailed      = NewDomainError("distributor", "Complete", KindTokenMintFailed, "token mint failed")
	ErrProgressUpdateFailed = NewDomainError("distributor", "Complete", KindProgressUpdateFailed, "progress update failed")
)

// KindOf returns the kind carried by err, or KindUnknown for foreign errors.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// IsValidation checks if the error was raised before any collaborator was called.
func IsValidation(err error) bool {
	switch KindOf(err) {
	case KindNotAuthorized, KindInvalidValue, KindInvalidDifficulty,
		KindNotEnrolled, KindAlreadyCompleted, KindInvalidQuizResults, KindInvalidProof:
		return true
	}
	return false
}

// IsCollaborator checks if the error reports a failed collaborator call.
func IsCollaborator(err error) bool {
	switch KindOf(err) {
	case KindTokenMintFailed, KindProgressUpdateFailed:
		return true
	}
	return false
}
