// Package orchestrator is the public entry point of the tutoring core: it
// dispatches a student utterance, runs the classify -> stream -> filter ->
// complete pipeline in the background, and exposes poll/wait operations on
// the resulting job.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/antoniostano/tutorcore/internal/audit"
	"github.com/antoniostano/tutorcore/internal/filter"
	"github.com/antoniostano/tutorcore/internal/job"
	"github.com/antoniostano/tutorcore/internal/observability"
	"github.com/antoniostano/tutorcore/internal/routing"
	"github.com/antoniostano/tutorcore/internal/safety"
	"github.com/antoniostano/tutorcore/internal/session"
	"github.com/antoniostano/tutorcore/internal/specialist"
)

var ErrJobNotFound = job.ErrNotFound

// Config bounds the background pipeline's collaborator calls.
type Config struct {
	PipelineTimeout time.Duration
}

// Orchestrator wires the routing/specialist/safety collaborators together
// around a JobStore and SessionState manager.
type Orchestrator struct {
	cfg Config

	router     routing.IntentRouter
	registry   specialist.Registry
	checker    safety.Checker
	auditSink  audit.Sink
	jobs       *job.Store
	sessions   *session.Manager
	metrics    *observability.Metrics
}

func New(
	cfg Config,
	router routing.IntentRouter,
	registry specialist.Registry,
	checker safety.Checker,
	auditSink audit.Sink,
	jobs *job.Store,
	sessions *session.Manager,
	metrics *observability.Metrics,
) *Orchestrator {
	if cfg.PipelineTimeout <= 0 {
		cfg.PipelineTimeout = 20 * time.Second
	}
	return &Orchestrator{
		cfg:       cfg,
		router:    router,
		registry:  registry,
		checker:   checker,
		auditSink: auditSink,
		jobs:      jobs,
		sessions:  sessions,
		metrics:   metrics,
	}
}

// Dispatch is O(1): it creates and stores the job, stacks the session's
// turn-skip counter, spawns the background pipeline, and returns
// immediately. It must never await a collaborator.
func (o *Orchestrator) Dispatch(sessionID, text string) string {
	start := time.Now()

	st := o.sessions.GetOrCreate(sessionID)
	j := job.New(uuid.NewString(), sessionID, text, start)
	o.jobs.Put(j)

	st.IncrementTurnCount()
	st.MarkRouting()

	go o.runPipeline(j, st)

	o.metrics.ObserveDispatchLatency(time.Since(start))
	o.metrics.ObserveJobEvent("dispatched")
	return j.ID
}

// Status returns the current snapshot of a job, or ErrJobNotFound.
func (o *Orchestrator) Status(jobID string) (job.Snapshot, error) {
	j, err := o.jobs.Get(jobID)
	if err != nil {
		return job.Snapshot{}, fmt.Errorf("status %s: %w", jobID, ErrJobNotFound)
	}
	return j.Snapshot(), nil
}

// ErrTimeout is returned by Wait when the job does not reach a terminal
// state within the caller's deadline.
var ErrTimeout = errors.New("orchestrator: wait timed out")

// Wait blocks until the job is terminal or timeout elapses.
func (o *Orchestrator) Wait(ctx context.Context, jobID string, timeout time.Duration) (job.Snapshot, error) {
	j, err := o.jobs.Get(jobID)
	if err != nil {
		return job.Snapshot{}, fmt.Errorf("wait %s: %w", jobID, ErrJobNotFound)
	}
	snap, ok := j.Await(ctx, timeout)
	if !ok {
		return snap, ErrTimeout
	}
	return snap, nil
}

func (o *Orchestrator) runPipeline(j *job.Job, st *session.State) {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.PipelineTimeout)
	defer cancel()

	snap := j.Snapshot()

	// Step 1: classify.
	classifyStart := time.Now()
	routed, err := o.router.Route(ctx, snap.StudentText)
	if err != nil {
		routed = routing.Fallback(snap.StudentText)
	}
	o.metrics.ObserveTurnStage("classify", time.Since(classifyStart))
	o.metrics.ObserveRoutingDecision(string(routed.Subject))

	j.MarkProcessing(string(routed.Subject), time.Now())
	st.SetCurrentSubject(routed.Subject)
	if routed.Subject == routing.SubjectEscalate {
		st.SetEscalated(true)
	}

	// Step 2: routing audit, best-effort.
	o.writeAudit("routing_decision", func() error {
		return o.auditSink.WriteRoutingDecision(audit.RoutingDecision{
			SessionID:  j.SessionID,
			JobID:      j.ID,
			Subject:    string(routed.Subject),
			Confidence: routed.Confidence,
			Raw:        routed.Raw,
			DecidedAt:  time.Now(),
		})
	})

	// Step 3+4: open the specialist stream and drain it through the
	// sentence-buffered safety filter, capturing raw text verbatim.
	streamStart := time.Now()
	deltas, err := o.registry.Open(ctx, routed.Subject, snap.StudentText)
	if err != nil {
		st.ConsumeSkip()
		j.MarkError(fmt.Sprintf("specialist stream: %v", err), time.Now())
		o.metrics.ObserveJobEvent("error")
		return
	}

	f := filter.NewSentenceBufferedFilter(o.checker)
	var rawText, safeText strings.Builder
	firstChunk := true
	var streamErr error

	for d := range deltas {
		if d.Err != nil {
			streamErr = d.Err
			break
		}
		if firstChunk {
			o.metrics.ObserveTurnStage("stream_first_chunk", time.Since(streamStart))
			firstChunk = false
		}
		rawText.WriteString(d.Text)
		for _, s := range f.Consume(ctx, d.Text) {
			safeText.WriteString(s)
		}
	}

	if streamErr != nil {
		st.ConsumeSkip()
		j.MarkError(fmt.Sprintf("specialist stream: %v", streamErr), time.Now())
		o.metrics.ObserveJobEvent("error")
		return
	}

	filterStart := time.Now()
	if final := f.Finalize(ctx); final != "" {
		safeText.WriteString(final)
	}
	o.metrics.ObserveTurnStage("filter", time.Since(filterStart))

	rawFinal := strings.TrimSpace(rawText.String())
	safeFinal := strings.TrimSpace(safeText.String())

	// Step 6: best-effort audit-only re-check when the safe text diverged
	// from the raw text. This mirrors the original system's behavior of
	// re-checking for audit metadata rather than reusing the per-sentence
	// results; see the design notes for why this is preserved as-is.
	if safeFinal != rawFinal {
		result := safety.FailOpen(ctx, o.checker, rawFinal)
		o.metrics.ObserveSafetyFlag(result.Flagged)
		o.writeAudit("safety_event", func() error {
			return o.auditSink.WriteSafetyEvent(audit.SafetyEvent{
				SessionID: j.SessionID,
				JobID:     j.ID,
				Flagged:   result.Flagged,
				Category:  result.Category,
				Original:  rawFinal,
				Rewritten: safeFinal,
				CheckedAt: time.Now(),
			})
		})
	}

	completeAt := time.Now()
	j.MarkComplete(safeFinal, rawFinal, completeAt)
	st.ResetFiller()
	st.ConsumeSkip()
	o.metrics.ObserveTurnStage("complete", time.Since(completeAt))
	o.metrics.ObserveTurnStage("turn_total", time.Since(snap.DispatchedAt))
	o.metrics.ObserveJobEvent("complete")

	// Step 8: transcript audit, best-effort.
	o.writeAudit("transcript_turn", func() error {
		return o.auditSink.WriteTranscriptTurn(audit.TranscriptTurn{
			SessionID:   j.SessionID,
			JobID:       j.ID,
			Subject:     string(routed.Subject),
			StudentText: snap.StudentText,
			SafeText:    safeFinal,
			RawText:     rawFinal,
			CompletedAt: completeAt,
		})
	})
}

func (o *Orchestrator) writeAudit(kind string, write func() error) {
	if o.auditSink == nil {
		return
	}
	if err := write(); err != nil {
		log.Printf("orchestrator: audit write failed kind=%s err=%v", kind, err)
		o.metrics.ObserveAuditWriteFailure(kind)
	}
}
