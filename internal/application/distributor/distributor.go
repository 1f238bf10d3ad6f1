// Package distributor runs the enrollment and completion/claim transactions
// over the reward ledgers, coordinating the quiz scorer, token minter and
// progress tracker.
package distributor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/alem-hub/course-rewards/internal/domain/certificate"
	"github.com/alem-hub/course-rewards/internal/domain/completion"
	"github.com/alem-hub/course-rewards/internal/domain/enrollment"
	"github.com/alem-hub/course-rewards/internal/domain/reward"
	"github.com/alem-hub/course-rewards/internal/domain/shared"
	"github.com/alem-hub/course-rewards/pkg/logger"
)

// QuizLength is the exact number of answers a submission must carry.
const QuizLength = 10

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds the initial global state.
type Config struct {
	// Admin is the initial administrator principal.
	Admin shared.Identity

	// Multiplier is the initial global reward multiplier.
	Multiplier uint64
}

// DefaultConfig returns the initial state used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Admin:      reward.DefaultAdmin,
		Multiplier: reward.DefaultMultiplier,
	}
}

// Dependencies are the handles the distributor calls into. Scorer, Minter
// and Progress are required; the rest fall back to defaults.
type Dependencies struct {
	Scorer       QuizScorer
	Minter       TokenMinter
	Progress     ProgressTracker
	Certificates certificate.Generator
	Clock        Clock
	Events       shared.EventPublisher
	Observer     Observer
	Logger       *logger.Logger
}

// ClaimResult is returned by a successful completion.
type ClaimResult struct {
	TokensAwarded   *uint256.Int `json:"tokensAwarded"`
	CertificationID string       `json:"certificationId"`
	Timestamp       uint64       `json:"timestamp"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DISTRIBUTOR
// ══════════════════════════════════════════════════════════════════════════════

// Distributor owns the configuration store, both ledgers and the minted
// total. Every instance is independent.
type Distributor struct {
	store       *reward.ConfigStore
	enrollments *enrollment.Ledger
	completions *completion.Ledger

	// stateMu pairs the completion commit with the total increment.
	stateMu sync.Mutex
	total   *uint256.Int

	locks *keyLocks

	scorer   QuizScorer
	minter   TokenMinter
	progress ProgressTracker
	certs    certificate.Generator
	clock    Clock
	events   shared.EventPublisher
	observer Observer
	base     *logger.Logger
	log      *logger.Logger
}

// New creates a distributor with an empty ledger.
func New(cfg Config, deps Dependencies) (*Distributor, error) {
	if deps.Scorer == nil {
		return nil, errors.New("distributor: quiz scorer is required")
	}
	if deps.Minter == nil {
		return nil, errors.New("distributor: token minter is required")
	}
	if deps.Progress == nil {
		return nil, errors.New("distributor: progress tracker is required")
	}

	if deps.Certificates == nil {
		deps.Certificates = certificate.NewSequenceGenerator("")
	}
	if deps.Clock == nil {
		deps.Clock = NewHeightClock(0)
	}
	if deps.Events == nil {
		deps.Events = shared.NopPublisher{}
	}
	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}

	return &Distributor{
		store:       reward.NewConfigStore(cfg.Admin, cfg.Multiplier),
		enrollments: enrollment.NewLedger(),
		completions: completion.NewLedger(),
		total:       new(uint256.Int),
		locks:       newKeyLocks(),
		scorer:      deps.Scorer,
		minter:      deps.Minter,
		progress:    deps.Progress,
		certs:       deps.Certificates,
		clock:       deps.Clock,
		events:      deps.Events,
		observer:    deps.Observer,
		base:        deps.Logger,
		log:         deps.Logger.With(logger.Component("distributor")),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT
// ══════════════════════════════════════════════════════════════════════════════

// EnrollUser enrolls caller in course. It always succeeds and is idempotent.
func (d *Distributor) EnrollUser(caller shared.Identity, course shared.CourseID) error {
	key := shared.NewEnrollmentKey(caller, course)

	created := d.enrollments.Enroll(key)
	d.observer.ObserveEnrollment(created)
	if !created {
		return nil
	}

	height := d.clock.Now()
	d.log.Debug("user enrolled",
		logger.User(caller.String()),
		logger.CourseID(course.Uint64()),
		logger.Height(height),
	)
	d.publish(shared.NewUserEnrolledEvent(key, height))
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION AND CLAIM
// Flow: Check Enrollment → Check Completion → Validate Quiz → Validate Proof →
//
//	Score Quiz → Load Config → Check Threshold → Calculate Reward →
//	Mint → Record Progress → Issue Certificate → Commit → Increment Total
//
// ══════════════════════════════════════════════════════════════════════════════

// ClaimStep names a step of the completion transaction.
type ClaimStep string

const (
	StepCheckEnrollment  ClaimStep = "check_enrollment"
	StepCheckCompletion  ClaimStep = "check_completion"
	StepValidateQuiz     ClaimStep = "validate_quiz"
	StepValidateProof    ClaimStep = "validate_proof"
	StepScoreQuiz        ClaimStep = "score_quiz"
	StepLoadConfig       ClaimStep = "load_config"
	StepCheckThreshold   ClaimStep = "check_threshold"
	StepCalculateReward  ClaimStep = "calculate_reward"
	StepMint             ClaimStep = "mint"
	StepRecordProgress   ClaimStep = "record_progress"
	StepIssueCertificate ClaimStep = "issue_certificate"
	StepCommit           ClaimStep = "commit"
	StepIncrementTotal   ClaimStep = "increment_total"
	StepComplete         ClaimStep = "complete"
)

// claimState tracks one completion transaction.
type claimState struct {
	CurrentStep ClaimStep
	Key         shared.EnrollmentKey
	Score       uint64
	Config      reward.CourseRewardConfig
	Reward      *uint256.Int
	CertID      string
	Record      completion.Record
	Total       *uint256.Int

	// Cause is the collaborator's own error, logged but never returned.
	Cause error
}

// CompleteCourseAndClaim scores the submitted quiz, mints the reward and
// records the completion. Either every effect on the ledgers happens or none
// does. The transaction is not cancellable once started: ctx values reach
// the collaborators but its cancellation does not.
func (d *Distributor) CompleteCourseAndClaim(
	ctx context.Context,
	caller shared.Identity,
	course shared.CourseID,
	quizResults []uint64,
	proof string,
) (*ClaimResult, error) {
	ctx = context.WithoutCancel(ctx)
	started := time.Now()

	state := &claimState{
		CurrentStep: StepCheckEnrollment,
		Key:         shared.NewEnrollmentKey(caller, course),
	}

	release := d.locks.lock(state.Key)
	err := d.runClaim(ctx, state, quizResults, proof)
	release()

	elapsed := time.Since(started)
	d.observer.ObserveClaim(err, state.Reward, elapsed)
	log := logger.FromContext(ctx, d.base).With(logger.Component("distributor"))

	if err != nil {
		fields := []logger.Field{
			logger.User(caller.String()),
			logger.CourseID(course.Uint64()),
			logger.Operation(string(state.CurrentStep)),
			logger.Kind(shared.KindOf(err).String()),
			logger.Latency(elapsed),
		}
		if state.Cause != nil {
			fields = append(fields, logger.Err(state.Cause))
			log.Warn("claim aborted by collaborator", fields...)
		} else {
			log.Info("claim rejected", fields...)
		}
		return nil, err
	}

	d.observer.ObserveTotal(state.Total)
	log.Info("course completed",
		logger.User(caller.String()),
		logger.CourseID(course.Uint64()),
		logger.Score(state.Score),
		logger.Amount(state.Reward.Dec()),
		logger.CertID(state.CertID),
		logger.Height(state.Record.Timestamp),
		logger.Latency(elapsed),
	)

	event := shared.NewCourseCompletedEvent(state.Key, state.Score, state.Reward.Dec(), state.CertID, state.Record.Timestamp)
	event.ProofDigest = certificate.ProofDigest(proof)
	d.publish(event)

	return &ClaimResult{
		TokensAwarded:   state.Reward.Clone(),
		CertificationID: state.CertID,
		Timestamp:       state.Record.Timestamp,
	}, nil
}

// runClaim executes the steps in order. It must be called with the key lock
// held.
func (d *Distributor) runClaim(ctx context.Context, state *claimState, quizResults []uint64, proof string) error {
	// Step 1: caller must be enrolled
	if !d.enrollments.IsEnrolled(state.Key) {
		return shared.ErrNotEnrolled
	}

	// Step 2: no prior completion
	state.CurrentStep = StepCheckCompletion
	if d.completions.IsCompleted(state.Key) {
		return shared.ErrAlreadyCompleted
	}

	// Step 3: exactly QuizLength answers
	state.CurrentStep = StepValidateQuiz
	if len(quizResults) != QuizLength {
		return shared.ErrInvalidQuizResults
	}

	// Step 4: proof present
	state.CurrentStep = StepValidateProof
	if proof == "" {
		return shared.ErrInvalidProof
	}

	// Step 5: score
	state.CurrentStep = StepScoreQuiz
	answers := append([]uint64(nil), quizResults...)
	score, err := d.scorer.ScoreQuiz(ctx, state.Key.Course, answers)
	if err != nil {
		state.Cause = err
		return shared.ErrQuizFailed
	}
	state.Score = score

	// Step 6: course config
	state.CurrentStep = StepLoadConfig
	cfg, ok := d.store.CourseRewardConfig(state.Key.Course)
	if !ok {
		return shared.ErrCourseNotFound
	}
	state.Config = cfg

	// Step 7: pass threshold, sharing the scorer failure kind
	state.CurrentStep = StepCheckThreshold
	if !cfg.Passed(score) {
		return shared.ErrQuizFailed
	}

	// Step 8: reward
	state.CurrentStep = StepCalculateReward
	state.Reward = cfg.RewardFor(score, d.store.Multiplier())

	// Step 9: mint
	state.CurrentStep = StepMint
	if err := d.minter.Mint(ctx, state.Key.User, state.Reward.Clone()); err != nil {
		state.Cause = err
		return shared.ErrTokenMintFailed
	}

	// Step 10: progress
	state.CurrentStep = StepRecordProgress
	if err := d.progress.CompleteCourse(ctx, state.Key.User, state.Key.Course); err != nil {
		state.Cause = err
		return shared.ErrProgressUpdateFailed
	}

	// Step 11: certificate
	state.CurrentStep = StepIssueCertificate
	state.CertID = d.certs.Next()

	// Steps 12-13: the completion record goes first, it is the one-time guard
	d.stateMu.Lock()
	state.CurrentStep = StepCommit
	rec, err := d.completions.Commit(state.Key, state.Score, d.clock.Now(), state.CertID, state.Reward)
	if err != nil {
		d.stateMu.Unlock()
		return err
	}
	state.Record = rec

	state.CurrentStep = StepIncrementTotal
	d.total.Add(d.total, state.Reward)
	state.Total = d.total.Clone()
	d.stateMu.Unlock()

	// Step 14
	state.CurrentStep = StepComplete
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMINISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// SetAdmin transfers the administrator role.
func (d *Distributor) SetAdmin(caller, newAdmin shared.Identity) error {
	err := d.store.SetAdmin(caller, newAdmin)
	d.observeAdmin("setAdmin", caller, err)
	if err != nil {
		return err
	}

	d.publish(shared.NewAdminChangedEvent(caller, newAdmin, d.clock.Now()))
	return nil
}

// SetRewardMultiplier replaces the global reward multiplier.
func (d *Distributor) SetRewardMultiplier(caller shared.Identity, multiplier uint64) error {
	err := d.store.SetRewardMultiplier(caller, multiplier)
	d.observeAdmin("setRewardMultiplier", caller, err)
	if err != nil {
		return err
	}

	d.publish(shared.NewMultiplierSetEvent(multiplier, d.clock.Now()))
	return nil
}

// AddCourseRewardConfig inserts or overwrites the reward configuration of a
// course.
func (d *Distributor) AddCourseRewardConfig(
	caller shared.Identity,
	course shared.CourseID,
	difficulty uint64,
	baseReward, passThreshold uint64,
) error {
	err := d.store.AddCourseRewardConfig(caller, course, difficulty, baseReward, passThreshold)
	d.observeAdmin("addCourseRewardConfig", caller, err)
	if err != nil {
		return err
	}

	d.publish(shared.NewCourseConfigSetEvent(course, difficulty, baseReward, passThreshold, d.clock.Now()))
	return nil
}

func (d *Distributor) observeAdmin(op string, caller shared.Identity, err error) {
	d.observer.ObserveAdmin(op, err)
	if err != nil {
		d.log.Info("admin operation rejected",
			logger.Operation(op),
			logger.User(caller.String()),
			logger.Kind(shared.KindOf(err).String()),
		)
		return
	}
	d.log.Info("admin operation applied", logger.Operation(op), logger.User(caller.String()))
}

// ReconcileTotal recomputes the minted total as the sum of the rewards on the
// completion records and stores it. It returns the reconciled total.
func (d *Distributor) ReconcileTotal() *uint256.Int {
	d.stateMu.Lock()
	sum := d.completions.SumRewards()
	previous := d.total.Clone()
	d.total.Set(sum)
	d.stateMu.Unlock()

	d.observer.ObserveTotal(sum)
	if previous.Eq(sum) {
		return sum
	}

	d.log.Warn("minted total reconciled",
		logger.String("previous", previous.Dec()),
		logger.Amount(sum.Dec()),
	)
	d.publish(shared.NewTotalReconciledEvent(previous.Dec(), sum.Dec(), d.clock.Now()))
	return sum
}

// ══════════════════════════════════════════════════════════════════════════════
// READS
// ══════════════════════════════════════════════════════════════════════════════

// TotalRewardsMinted returns a copy of the running minted total.
func (d *Distributor) TotalRewardsMinted() *uint256.Int {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.total.Clone()
}

// CourseRewardConfig looks up the reward configuration of a course.
func (d *Distributor) CourseRewardConfig(course shared.CourseID) (reward.CourseRewardConfig, bool) {
	return d.store.CourseRewardConfig(course)
}

// UserCompletion looks up the completion record of user in course.
func (d *Distributor) UserCompletion(user shared.Identity, course shared.CourseID) (completion.Record, bool) {
	return d.completions.Get(shared.NewEnrollmentKey(user, course))
}

// IsUserEnrolled reports whether user is enrolled in course.
func (d *Distributor) IsUserEnrolled(user shared.Identity, course shared.CourseID) bool {
	return d.enrollments.IsEnrolled(shared.NewEnrollmentKey(user, course))
}

// Admin returns the current administrator.
func (d *Distributor) Admin() shared.Identity {
	return d.store.Admin()
}

// RewardMultiplier returns the current global multiplier.
func (d *Distributor) RewardMultiplier() uint64 {
	return d.store.Multiplier()
}

// Completions returns every completion record, oldest first.
func (d *Distributor) Completions() []completion.Entry {
	return d.completions.Entries()
}

func (d *Distributor) publish(event shared.Event) {
	if err := d.events.Publish(event); err != nil {
		d.log.Warn("event publish failed",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
	}
}
