// Package session runs the credential relay and activity sync handshake for one client connection.
//
// A session reads exactly three text frames (expiry, access token, refresh token), fetches the
// complete activity history with the access token, upserts every activity, and echoes the two
// tokens back. Any failure ends the session with a single error frame.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/torhovland/segmentor/internal/domain"
	"github.com/torhovland/segmentor/internal/events"
	"github.com/torhovland/segmentor/internal/transport"
)

// Phase is the protocol state of a session.
type Phase string

const (
	PhaseStart             Phase = "start"
	PhaseAwaitExpiry       Phase = "await_expiry"
	PhaseAwaitAccessToken  Phase = "await_access_token"
	PhaseAwaitRefreshToken Phase = "await_refresh_token"
	PhaseFetching          Phase = "fetching"
	PhasePersisting        Phase = "persisting"
	PhaseReplying          Phase = "replying"
	PhaseDone              Phase = "done"
	PhaseFailed            Phase = "failed"
)

const notifyTimeout = 5 * time.Second

// Notifier is told about every finished session.
type Notifier interface {
	PublishSyncFinished(ctx context.Context, evt events.SyncFinished) error
}

// Option configures optional behaviour for the Runner.
type Option func(*Runner)

// WithLogger overrides the logger used to report session progress.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithClock overrides the time source used for the freshness check.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithFreshnessMargin sets the lead time before expiry at which a credential is flagged stale.
func WithFreshnessMargin(margin time.Duration) Option {
	return func(r *Runner) {
		r.margin = margin
	}
}

// WithNotifier registers a Notifier for finished sessions.
func WithNotifier(n Notifier) Option {
	return func(r *Runner) {
		r.notifier = n
	}
}

// Runner holds the collaborators shared by all sessions. It is safe for concurrent use;
// each call to Serve owns its own session state.
type Runner struct {
	source   domain.ActivitySource
	store    domain.ActivityStore
	logger   zerolog.Logger
	now      func() time.Time
	margin   time.Duration
	notifier Notifier
}

// NewRunner constructs a Runner.
func NewRunner(source domain.ActivitySource, store domain.ActivityStore, opts ...Option) *Runner {
	r := &Runner{
		source:   source,
		store:    store,
		logger:   zerolog.Nop(),
		now:      time.Now,
		margin:   domain.DefaultFreshnessMargin,
		notifier: events.NoopPublisher{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result describes a finished session.
type Result struct {
	ID              string
	Phase           Phase
	Err             *Error
	Fetched         int
	Persisted       int
	StaleCredential bool
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Succeeded reports whether the session reached PhaseDone.
func (r Result) Succeeded() bool {
	return r.Phase == PhaseDone
}

type session struct {
	id     string
	phase  Phase
	cred   domain.Credential
	conn   transport.TextConn
	logger zerolog.Logger
	result Result
}

func (s *session) enter(phase Phase) {
	s.phase = phase
	s.logger.Debug().Str("phase", string(phase)).Msg("entering phase")
}

func (s *session) fail(kind Kind, err error) *Error {
	return &Error{Kind: kind, Phase: s.phase, Err: err}
}

// Serve runs one session over conn until it is done or failed. It never panics on malformed
// input and never closes conn; the caller owns the connection.
func (r *Runner) Serve(ctx context.Context, conn transport.TextConn) Result {
	id := uuid.NewString()
	s := &session{
		id:     id,
		phase:  PhaseStart,
		conn:   conn,
		logger: r.logger.With().Str("session_id", id).Logger(),
		result: Result{ID: id, StartedAt: r.now()},
	}

	activeSessionsGauge.Inc()
	defer activeSessionsGauge.Dec()

	if err := r.run(ctx, s); err != nil {
		s.result.Err = err
		s.phase = PhaseFailed
		s.logger.Error().
			Err(err.Err).
			Str("kind", string(err.Kind)).
			Str("phase", string(err.Phase)).
			Int("persisted", s.result.Persisted).
			Msg("sync session failed")
		if err.Kind != KindClientDisconnected {
			r.replyError(ctx, s, err)
		}
	} else {
		s.logger.Info().
			Int("fetched", s.result.Fetched).
			Int("persisted", s.result.Persisted).
			Msg("sync session completed")
	}

	s.result.Phase = s.phase
	s.result.FinishedAt = r.now()
	recordOutcome(s.result.Err)
	r.notify(ctx, s)
	return s.result
}

func (r *Runner) run(ctx context.Context, s *session) *Error {
	s.enter(PhaseAwaitExpiry)
	rawExpiry, err := r.receive(ctx, s)
	if err != nil {
		return err
	}
	expiresAt, parseErr := strconv.ParseUint(rawExpiry, 10, 64)
	if parseErr != nil {
		return s.fail(KindInvalidExpiry, fmt.Errorf("expiration %q is not unix time: %w", rawExpiry, parseErr))
	}
	s.cred.ExpiresAt = expiresAt

	s.enter(PhaseAwaitAccessToken)
	if s.cred.AccessToken, err = r.receive(ctx, s); err != nil {
		return err
	}

	s.enter(PhaseAwaitRefreshToken)
	if s.cred.RefreshToken, err = r.receive(ctx, s); err != nil {
		return err
	}

	if !domain.IsFresh(s.cred.ExpiresAt, r.now(), r.margin) {
		s.result.StaleCredential = true
		staleCredentialCounter.Inc()
		s.logger.Warn().
			Uint64("expires_at", s.cred.ExpiresAt).
			Dur("margin", r.margin).
			Msg("access token expires within the freshness margin; fetching anyway")
	}

	s.enter(PhaseFetching)
	started := time.Now()
	activities, fetchErr := r.source.FetchActivities(ctx, s.cred.AccessToken)
	if fetchErr != nil {
		return s.fail(KindSource, fetchErr)
	}
	recordFetch(started, len(activities))
	s.result.Fetched = len(activities)
	s.logger.Debug().Int("count", len(activities)).Msg("finished loading activities")

	s.enter(PhasePersisting)
	if err := r.persist(ctx, s, activities); err != nil {
		return err
	}

	s.enter(PhaseReplying)
	for _, token := range []string{s.cred.AccessToken, s.cred.RefreshToken} {
		if writeErr := s.conn.WriteText(ctx, token); writeErr != nil {
			s.logger.Error().Err(writeErr).Msg("failed to send token reply")
		}
	}

	s.enter(PhaseDone)
	return nil
}

// receive reads exactly one text frame for the current phase.
func (r *Runner) receive(ctx context.Context, s *session) (string, *Error) {
	text, err := s.conn.ReadText(ctx)
	if err != nil {
		if errors.Is(err, transport.ErrUnexpectedFrame) {
			return "", s.fail(KindUnexpectedMessage, err)
		}
		return "", s.fail(KindClientDisconnected, err)
	}
	s.logger.Debug().Str("phase", string(s.phase)).Int("length", len(text)).Msg("received frame")
	return text, nil
}

// persist normalises and upserts activities one by one. The first failure aborts the batch;
// rows written before it are kept.
func (r *Runner) persist(ctx context.Context, s *session, activities []domain.RawActivity) *Error {
	for _, raw := range activities {
		stored, err := domain.Normalize(raw)
		if err != nil {
			return s.fail(KindTransform, fmt.Errorf("activity %d: %w", raw.ID, err))
		}

		s.logger.Debug().
			Int64("activity_id", stored.ID).
			Time("time", stored.Time).
			Str("name", stored.Name).
			Msg("saving activity")

		if err := r.store.Upsert(ctx, stored); err != nil {
			return s.fail(KindPersist, err)
		}
		s.result.Persisted++
	}
	return nil
}

func (r *Runner) replyError(ctx context.Context, s *session, sessErr *Error) {
	body, err := json.Marshal(errorFrame{Type: sessErr.Kind, Detail: sessErr.detail()})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode error reply")
		return
	}
	if err := s.conn.WriteText(ctx, string(body)); err != nil {
		s.logger.Error().Err(err).Msg("failed to send error reply")
	}
}

func (r *Runner) notify(ctx context.Context, s *session) {
	evt := events.SyncFinished{
		SessionID:           s.id,
		Outcome:             outcomeDone,
		Phase:               string(s.result.Phase),
		ActivitiesFetched:   s.result.Fetched,
		ActivitiesPersisted: s.result.Persisted,
		StaleCredential:     s.result.StaleCredential,
		StartedAt:           s.result.StartedAt,
		FinishedAt:          s.result.FinishedAt,
	}
	if s.result.Err != nil {
		evt.Outcome = string(PhaseFailed)
		evt.FailureKind = string(s.result.Err.Kind)
		evt.Phase = string(s.result.Err.Phase)
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := r.notifier.PublishSyncFinished(notifyCtx, evt); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish sync event")
	}
}
