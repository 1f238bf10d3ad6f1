// Package service contains in-process collaborators for the distributor and
// decorators that guard any collaborator with a circuit breaker.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/alem-hub/course-rewards/internal/domain/shared"
)

var (
	// ErrSupplyCapExceeded is returned when a mint would push supply over the cap.
	ErrSupplyCapExceeded = errors.New("token: supply cap exceeded")

	// ErrInvalidRecipient is returned for an empty recipient.
	ErrInvalidRecipient = errors.New("token: invalid recipient")
)

// ══════════════════════════════════════════════════════════════════════════════
// MEMORY MINTER
// ══════════════════════════════════════════════════════════════════════════════

// MemoryMinter keeps token balances in memory. A nil or zero cap means
// unlimited supply.
type MemoryMinter struct {
	mu       sync.Mutex
	cap      *uint256.Int
	supply   *uint256.Int
	balances map[shared.Identity]*uint256.Int
}

// NewMemoryMinter creates a minter with the given supply cap.
func NewMemoryMinter(supplyCap *uint256.Int) *MemoryMinter {
	m := &MemoryMinter{
		supply:   new(uint256.Int),
		balances: make(map[shared.Identity]*uint256.Int),
	}
	if supplyCap != nil && !supplyCap.IsZero() {
		m.cap = supplyCap.Clone()
	}
	return m
}

// Mint implements distributor.TokenMinter.
func (m *MemoryMinter) Mint(_ context.Context, recipient shared.Identity, amount *uint256.Int) error {
	if recipient.IsZero() {
		return ErrInvalidRecipient
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next, overflow := new(uint256.Int).AddOverflow(m.supply, amount)
	if overflow || (m.cap != nil && next.Gt(m.cap)) {
		return fmt.Errorf("%w: minting %s on supply %s", ErrSupplyCapExceeded, amount.Dec(), m.supply.Dec())
	}

	bal, ok := m.balances[recipient]
	if !ok {
		bal = new(uint256.Int)
		m.balances[recipient] = bal
	}
	bal.Add(bal, amount)
	m.supply = next
	return nil
}

// BalanceOf returns the balance of an account.
func (m *MemoryMinter) BalanceOf(account shared.Identity) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if bal, ok := m.balances[account]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

// Supply returns the total minted supply.
func (m *MemoryMinter) Supply() *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.supply.Clone()
}

// ══════════════════════════════════════════════════════════════════════════════
// MEMORY PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// MemoryProgress records finished courses in memory. Recording the same
// course twice is a no-op.
type MemoryProgress struct {
	mu       sync.RWMutex
	finished map[shared.EnrollmentKey]struct{}
}

// NewMemoryProgress creates an empty tracker.
func NewMemoryProgress() *MemoryProgress {
	return &MemoryProgress{finished: make(map[shared.EnrollmentKey]struct{})}
}

// CompleteCourse implements distributor.ProgressTracker.
func (p *MemoryProgress) CompleteCourse(_ context.Context, user shared.Identity, course shared.CourseID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished[shared.NewEnrollmentKey(user, course)] = struct{}{}
	return nil
}

// IsCompleted reports whether the course was recorded for user.
func (p *MemoryProgress) IsCompleted(user shared.Identity, course shared.CourseID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.finished[shared.NewEnrollmentKey(user, course)]
	return ok
}
