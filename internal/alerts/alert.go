// Package alerts models Alert records produced by the rule engine and their
// append-only persistence.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/borelli28/siembackend/internal/monitoring"
)

// ErrNotFound is returned when an alert lookup finds no matching row.
var ErrNotFound = errors.New("alerts: not found")

// Alert is produced by the RuleEngine for a matched Rule. Alerts are
// append-only: only Acknowledged and CaseID may mutate post-creation.
type Alert struct {
	ID           string
	RuleID       string
	AccountID    string
	Severity     string
	Message      string
	Acknowledged bool
	CaseID       *string
	CreatedAt    time.Time
}

// AttachToCase sets the alert's case id, the only way a case membership edge
// is created (the canonical edge lives on Alert, never on Case).
func (a *Alert) AttachToCase(caseID string) {
	a.CaseID = &caseID
}

// DetachFromCase clears the alert's case id.
func (a *Alert) DetachFromCase() {
	a.CaseID = nil
}

// Acknowledge marks the alert acknowledged. Acknowledged and AttachedToCase
// are independent bits; acknowledging does not touch CaseID.
func (a *Alert) Acknowledge() {
	a.Acknowledged = true
}

// Sink is the append-only alert writer the RuleEngine hands matches to.
type Sink interface {
	Write(ctx context.Context, a Alert) error
}

// PostgresSink persists alerts to the alerts table via a shared pgx pool.
type PostgresSink struct {
	pool    *pgxpool.Pool
	metrics *monitoring.Metrics
}

// NewPostgresSink builds a Sink backed by pool. metrics may be nil.
func NewPostgresSink(pool *pgxpool.Pool, metrics *monitoring.Metrics) *PostgresSink {
	return &PostgresSink{pool: pool, metrics: metrics}
}

// Write persists one alert. Failures are surfaced to the caller; the event
// that triggered the alert remains stored regardless of this outcome.
func (s *PostgresSink) Write(ctx context.Context, a Alert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alerts (id, rule_id, account_id, severity, message, acknowledged, case_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.RuleID, a.AccountID, a.Severity, a.Message, a.Acknowledged, a.CaseID, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("alerts: writing alert (rule=%s account=%s): %w", a.RuleID, a.AccountID, err)
	}
	if s.metrics != nil {
		s.metrics.RecordAlert(a.RuleID, a.Severity)
	}
	return nil
}

// AttachToCase sets case_id on an existing alert.
func (s *PostgresSink) AttachToCase(ctx context.Context, alertID, caseID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE alerts SET case_id = $1 WHERE id = $2`, caseID, alertID)
	if err != nil {
		return fmt.Errorf("alerts: attaching alert %s to case %s: %w", alertID, caseID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DetachFromCase clears case_id on an existing alert.
func (s *PostgresSink) DetachFromCase(ctx context.Context, alertID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE alerts SET case_id = NULL WHERE id = $1`, alertID)
	if err != nil {
		return fmt.Errorf("alerts: detaching alert %s from case: %w", alertID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Acknowledge marks an existing alert acknowledged.
func (s *PostgresSink) Acknowledge(ctx context.Context, alertID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE alerts SET acknowledged = true WHERE id = $1`, alertID)
	if err != nil {
		return fmt.Errorf("alerts: acknowledging alert %s: %w", alertID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get fetches a single alert by id.
func (s *PostgresSink) Get(ctx context.Context, alertID string) (Alert, error) {
	var a Alert
	err := s.pool.QueryRow(ctx,
		`SELECT id, rule_id, account_id, severity, message, acknowledged, case_id, created_at
		 FROM alerts WHERE id = $1`, alertID,
	).Scan(&a.ID, &a.RuleID, &a.AccountID, &a.Severity, &a.Message, &a.Acknowledged, &a.CaseID, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Alert{}, ErrNotFound
		}
		return Alert{}, fmt.Errorf("alerts: fetching alert %s: %w", alertID, err)
	}
	return a, nil
}
