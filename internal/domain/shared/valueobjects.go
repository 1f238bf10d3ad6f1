// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"strconv"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// Identity
// ═══════════════════════════════════════════════════════════════════════════

// Identity is an opaque principal: the calling user or the administrator.
// Two identities are equal only if their bytes match exactly.
type Identity string

// String returns the string representation.
func (i Identity) String() string {
	return string(i)
}

// IsZero reports whether the identity is empty.
func (i Identity) IsZero() bool {
	return i == ""
}

// ═══════════════════════════════════════════════════════════════════════════
// CourseID
// ═══════════════════════════════════════════════════════════════════════════

// CourseID identifies a course.
type CourseID uint64

// Uint64 returns the underlying value.
func (c CourseID) Uint64() uint64 {
	return uint64(c)
}

// String returns the decimal representation.
func (c CourseID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

// ParseCourseID parses a decimal course identifier.
func ParseCourseID(s string) (CourseID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid course id %q: %w", s, err)
	}
	return CourseID(v), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// EnrollmentKey
// ═══════════════════════════════════════════════════════════════════════════

// EnrollmentKey is the composite (user, course) key shared by the enrollment
// and completion ledgers. It is comparable and usable as a map key directly.
type EnrollmentKey struct {
	User   Identity
	Course CourseID
}

// NewEnrollmentKey builds a key.
func NewEnrollmentKey(user Identity, course CourseID) EnrollmentKey {
	return EnrollmentKey{User: user, Course: course}
}

// String is for logs only. It is never used as a storage key.
func (k EnrollmentKey) String() string {
	return fmt.Sprintf("%s/%d", k.User, k.Course)
}
