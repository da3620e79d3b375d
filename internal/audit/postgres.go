package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink persists audit records in PostgreSQL. The orchestration
// pipeline treats every write as best-effort and continues on error; the
// caller is responsible for logging and metrics.
type PostgresSink struct {
	pool *pgxpool.Pool
}

func NewPostgresSink(ctx context.Context, databaseURL string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresSink{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS routing_decisions (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			job_id TEXT NOT NULL,
			subject TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			raw TEXT NOT NULL,
			decided_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_routing_decisions_session ON routing_decisions (session_id, decided_at);`,
		`CREATE TABLE IF NOT EXISTS safety_events (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			job_id TEXT NOT NULL,
			flagged BOOLEAN NOT NULL,
			category TEXT NOT NULL,
			original TEXT NOT NULL,
			rewritten TEXT NOT NULL,
			checked_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_safety_events_session ON safety_events (session_id, checked_at);`,
		`CREATE TABLE IF NOT EXISTS transcript_turns (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			job_id TEXT NOT NULL,
			subject TEXT NOT NULL,
			student_text TEXT NOT NULL,
			safe_text TEXT NOT NULL,
			raw_text TEXT NOT NULL,
			completed_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_turns_session ON transcript_turns (session_id, completed_at);`,
		`CREATE TABLE IF NOT EXISTS escalation_events (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			teacher_ws TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_escalation_events_session ON escalation_events (session_id, occurred_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresSink) WriteRoutingDecision(d RoutingDecision) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO routing_decisions (id, session_id, job_id, subject, confidence, raw, decided_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), d.SessionID, d.JobID, d.Subject, d.Confidence, d.Raw, d.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("write routing decision: %w", err)
	}
	return nil
}

func (s *PostgresSink) WriteSafetyEvent(e SafetyEvent) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO safety_events (id, session_id, job_id, flagged, category, original, rewritten, checked_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), e.SessionID, e.JobID, e.Flagged, e.Category, e.Original, e.Rewritten, e.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("write safety event: %w", err)
	}
	return nil
}

func (s *PostgresSink) WriteTranscriptTurn(t TranscriptTurn) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO transcript_turns (id, session_id, job_id, subject, student_text, safe_text, raw_text, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), t.SessionID, t.JobID, t.Subject, t.StudentText, t.SafeText, t.RawText, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("write transcript turn: %w", err)
	}
	return nil
}

func (s *PostgresSink) WriteEscalationEvent(e EscalationEvent) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO escalation_events (id, session_id, reason, teacher_ws, occurred_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), e.SessionID, e.Reason, e.TeacherWS, e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("write escalation event: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
