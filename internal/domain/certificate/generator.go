// Package certificate issues the identifiers handed out with every successful
// course completion. Generators are deterministic for a given salt so tests
// and replays can assert exact identifiers.
package certificate

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// Prefix starts every certificate identifier.
const Prefix = "CERT-"

// suffixLen is the number of base36 characters after the prefix.
const suffixLen = 9

// base36Space is 36^9, the number of distinct suffixes.
const base36Space uint64 = 101559956668416

// Generator produces certificate identifiers.
type Generator interface {
	// Next returns an identifier never returned before by this generator.
	Next() string
}

// ══════════════════════════════════════════════════════════════════════════════
// SEQUENCE GENERATOR
// ══════════════════════════════════════════════════════════════════════════════

// SequenceGenerator derives CERT-XXXXXXXXX identifiers from blake2b(salt, counter).
type SequenceGenerator struct {
	mu      sync.Mutex
	salt    []byte
	counter uint64
	issued  map[string]struct{}
}

// NewSequenceGenerator creates a generator for the given salt.
func NewSequenceGenerator(salt string) *SequenceGenerator {
	return &SequenceGenerator{
		salt:   []byte(salt),
		issued: make(map[string]struct{}),
	}
}

// Next implements Generator.
func (g *SequenceGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.counter++
	for attempt := uint64(0); ; attempt++ {
		id := Prefix + g.suffix(g.counter, attempt)
		if _, dup := g.issued[id]; dup {
			continue
		}
		g.issued[id] = struct{}{}
		return id
	}
}

// Issued returns how many identifiers have been produced.
func (g *SequenceGenerator) Issued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.issued)
}

func (g *SequenceGenerator) suffix(counter, attempt uint64) string {
	buf := make([]byte, 0, len(g.salt)+16)
	buf = append(buf, g.salt...)
	buf = binary.BigEndian.AppendUint64(buf, counter)
	buf = binary.BigEndian.AppendUint64(buf, attempt)

	sum := blake2b.Sum256(buf)
	v := binary.BigEndian.Uint64(sum[:8]) % base36Space

	s := strings.ToUpper(strconv.FormatUint(v, 36))
	if len(s) < suffixLen {
		s = strings.Repeat("0", suffixLen-len(s)) + s
	}
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// UUID GENERATOR
// ══════════════════════════════════════════════════════════════════════════════

// UUIDGenerator issues CERT-<uuid> identifiers from name-based (SHA-1) UUIDs
// of a per-salt namespace and a counter.
type UUIDGenerator struct {
	mu        sync.Mutex
	namespace uuid.UUID
	counter   uint64
}

// NewUUIDGenerator creates a generator for the given salt.
func NewUUIDGenerator(salt string) *UUIDGenerator {
	return &UUIDGenerator{
		namespace: uuid.NewSHA1(uuid.NameSpaceOID, []byte("course-rewards/"+salt)),
	}
}

// Next implements Generator.
func (g *UUIDGenerator) Next() string {
	g.mu.Lock()
	g.counter++
	n := g.counter
	g.mu.Unlock()

	name := binary.BigEndian.AppendUint64(nil, n)
	return Prefix + strings.ToUpper(uuid.NewSHA1(g.namespace, name).String())
}

// ══════════════════════════════════════════════════════════════════════════════
// PROOF DIGEST
// ══════════════════════════════════════════════════════════════════════════════

// ProofDigest fingerprints a completion proof so audit records never carry
// the raw proof.
func ProofDigest(proof string) string {
	sum := blake2b.Sum256([]byte(proof))
	return hex.EncodeToString(sum[:])
}

// ══════════════════════════════════════════════════════════════════════════════
// STRATEGY
// ══════════════════════════════════════════════════════════════════════════════

// Strategy names a Generator implementation in configuration.
type Strategy string

const (
	StrategySequence Strategy = "sequence"
	StrategyUUID     Strategy = "uuid"
)

// New returns the generator for the strategy, defaulting to sequence.
func New(strategy Strategy, salt string) Generator {
	if strategy == StrategyUUID {
		return NewUUIDGenerator(salt)
	}
	return NewSequenceGenerator(salt)
}
