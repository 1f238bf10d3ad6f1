// Package dispatch exposes the distributor as a contract-call host: each
// request is a JSON envelope naming a caller, a method and its params.
package dispatch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/alem-hub/course-rewards/internal/application/distributor"
	"github.com/alem-hub/course-rewards/internal/domain/completion"
	"github.com/alem-hub/course-rewards/internal/domain/reward"
	"github.com/alem-hub/course-rewards/internal/domain/shared"
	"github.com/alem-hub/course-rewards/pkg/logger"
)

// Method names accepted in the envelope.
const (
	MethodEnrollUser             = "enrollUser"
	MethodCompleteCourseAndClaim = "completeCourseAndClaim"
	MethodSetAdmin               = "setAdmin"
	MethodSetRewardMultiplier    = "setRewardMultiplier"
	MethodAddCourseRewardConfig  = "addCourseRewardConfig"
	MethodGetTotalRewardsMinted  = "getTotalRewardsMinted"
	MethodGetCourseRewardConfig  = "getCourseRewardConfig"
	MethodGetUserCompletion      = "getUserCompletion"
	MethodIsUserEnrolled         = "isUserEnrolled"
	MethodReconcileTotal         = "reconcileTotal"
)

// Host-level error names, outside the distributor's own kinds.
const (
	ErrorBadRequest = "BadRequest"
	ErrorInternal   = "Internal"
)

// maxEnvelopeSize bounds one input line.
const maxEnvelopeSize = 1 << 20

// Service is the distributor surface the dispatcher drives.
type Service interface {
	EnrollUser(caller shared.Identity, course shared.CourseID) error
	CompleteCourseAndClaim(ctx context.Context, caller shared.Identity, course shared.CourseID, quizResults []uint64, proof string) (*distributor.ClaimResult, error)
	SetAdmin(caller, newAdmin shared.Identity) error
	SetRewardMultiplier(caller shared.Identity, multiplier uint64) error
	AddCourseRewardConfig(caller shared.Identity, course shared.CourseID, difficulty uint64, baseReward, passThreshold uint64) error
	TotalRewardsMinted() *uint256.Int
	CourseRewardConfig(course shared.CourseID) (reward.CourseRewardConfig, bool)
	UserCompletion(user shared.Identity, course shared.CourseID) (completion.Record, bool)
	IsUserEnrolled(user shared.Identity, course shared.CourseID) bool
	ReconcileTotal() *uint256.Int
}

// Ticker advances the logical clock once per envelope.
type Ticker interface {
	Advance() uint64
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRE TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Request is one call envelope.
type Request struct {
	// ID correlates the envelope's log lines; one is generated when empty.
	ID     string          `json:"id,omitempty"`
	Caller string          `json:"caller"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the reply to one envelope.
type Response struct {
	OK      bool        `json:"ok"`
	Value   interface{} `json:"value,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    uint32      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

type courseParams struct {
	CourseID shared.CourseID `json:"courseId"`
}

type userCourseParams struct {
	User     shared.Identity `json:"user"`
	CourseID shared.CourseID `json:"courseId"`
}

type claimParams struct {
	CourseID    shared.CourseID `json:"courseId"`
	QuizResults []uint64        `json:"quizResults"`
	Proof       string          `json:"proof"`
}

type setAdminParams struct {
	NewAdmin shared.Identity `json:"newAdmin"`
}

type multiplierParams struct {
	Multiplier uint64 `json:"multiplier"`
}

type configParams struct {
	CourseID      shared.CourseID `json:"courseId"`
	Difficulty    uint64          `json:"difficulty"`
	BaseReward    uint64          `json:"baseReward"`
	PassThreshold uint64          `json:"passThreshold"`
}

// ClaimView is the wire form of a claim result.
type ClaimView struct {
	TokensAwarded   string `json:"tokensAwarded"`
	CertificationID string `json:"certificationId"`
	Timestamp       uint64 `json:"timestamp"`
}

// CompletionView is the wire form of a completion record.
type CompletionView struct {
	Completed bool   `json:"completed"`
	Score     uint64 `json:"score"`
	Timestamp uint64 `json:"timestamp"`
	CertID    string `json:"certId"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// Dispatcher decodes envelopes, calls the service and encodes responses.
type Dispatcher struct {
	svc    Service
	ticker Ticker
	base   *logger.Logger
	log    *logger.Logger
}

// NewDispatcher creates a dispatcher. ticker may be nil.
func NewDispatcher(svc Service, ticker Ticker, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Default()
	}
	return &Dispatcher{
		svc:    svc,
		ticker: ticker,
		base:   log,
		log:    log.With(logger.Component("dispatch")),
	}
}

// Serve handles newline-delimited envelopes from r until EOF or ctx is done,
// writing one response line per envelope to w. Blank lines are skipped.
func (d *Dispatcher) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxEnvelopeSize)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := enc.Encode(d.HandleRaw(ctx, line)); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	return scanner.Err()
}

// HandleRaw decodes one envelope and handles it.
func (d *Dispatcher) HandleRaw(ctx context.Context, raw []byte) Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return badRequest("malformed envelope: %v", err)
	}
	return d.Handle(ctx, req)
}

// Handle runs one call.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	if d.ticker != nil {
		d.ticker.Advance()
	}

	// A transaction always has a sender; an empty one would match an empty admin.
	caller := shared.Identity(req.Caller)
	if caller.IsZero() {
		return badRequest("missing caller")
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	ctx = logger.WithContext(ctx, d.base.WithRequestID(id))

	value, err := d.call(ctx, caller, req)
	if err != nil {
		var bad *badRequestError
		if errors.As(err, &bad) {
			d.log.WithRequestID(id).Debug("bad request", logger.Operation(req.Method), logger.Err(err))
			return badRequest("%s", bad.msg)
		}
		return errorResponse(err)
	}
	return Response{OK: true, Value: value}
}

func (d *Dispatcher) call(ctx context.Context, caller shared.Identity, req Request) (interface{}, error) {
	switch req.Method {
	case MethodEnrollUser:
		var p courseParams
		if err := decode(req.Params, &p); err != nil {
			return nil, err
		}
		return nil, d.svc.EnrollUser(caller, p.CourseID)

	case MethodCompleteCourseAndClaim:
		var p claimParams
		if err := decode(req.Params, &p); err != nil {
			return nil, err
		}
		res, err := d.svc.CompleteCourseAndClaim(ctx, caller, p.CourseID, p.QuizResults, p.Proof)
		if err != nil {
			return nil, err
		}
		return ClaimView{
			TokensAwarded:   res.TokensAwarded.Dec(),
			CertificationID: res.CertificationID,
			Timestamp:       res.Timestamp,
		}, nil

	case MethodSetAdmin:
		var p setAdminParams
		if err := decode(req.Params, &p); err != nil {
			return nil, err
		}
		return nil, d.svc.SetAdmin(caller, p.NewAdmin)

	case MethodSetRewardMultiplier:
		var p multiplierParams
		if err := decode(req.Params, &p); err != nil {
			return nil, err
		}
		return nil, d.svc.SetRewardMultiplier(caller, p.Multiplier)

	case MethodAddCourseRewardConfig:
		var p configParams
		if err := decode(req.Params, &p); err != nil {
			return nil, err
		}
		return nil, d.svc.AddCourseRewardConfig(caller, p.CourseID, p.Difficulty, p.BaseReward, p.PassThreshold)

	case MethodGetTotalRewardsMinted:
		return d.svc.TotalRewardsMinted().Dec(), nil

	case MethodGetCourseRewardConfig:
		var p courseParams
		if err := decode(req.Params, &p); err != nil {
			return nil, err
		}
		cfg, ok := d.svc.CourseRewardConfig(p.CourseID)
		if !ok {
			return nil, nil
		}
		return cfg, nil

	case MethodGetUserCompletion:
		var p userCourseParams
		if err := decode(req.Params, &p); err != nil {
			return nil, err
		}
		rec, ok := d.svc.UserCompletion(p.User, p.CourseID)
		if !ok {
			return nil, nil
		}
		return CompletionView{
			Completed: rec.Completed,
			Score:     rec.Score,
			Timestamp: rec.Timestamp,
			CertID:    rec.CertID,
		}, nil

	case MethodIsUserEnrolled:
		var p userCourseParams
		if err := decode(req.Params, &p); err != nil {
			return nil, err
		}
		return d.svc.IsUserEnrolled(p.User, p.CourseID), nil

	case MethodReconcileTotal:
		return d.svc.ReconcileTotal().Dec(), nil

	default:
		return nil, &badRequestError{msg: fmt.Sprintf("unknown method %q", req.Method)}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func decode(raw json.RawMessage, dest interface{}) error {
	if len(raw) == 0 {
		return &badRequestError{msg: "missing params"}
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return &badRequestError{msg: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}

func badRequest(format string, args ...interface{}) Response {
	return Response{OK: false, Error: ErrorBadRequest, Message: fmt.Sprintf(format, args...)}
}

func errorResponse(err error) Response {
	kind := shared.KindOf(err)
	if kind == shared.KindUnknown {
		return Response{OK: false, Error: ErrorInternal, Message: err.Error()}
	}
	return Response{OK: false, Error: kind.String(), Code: kind.Code()}
}
