package data

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/target/console-auth/internal/data/pgxutil"
	domainauth "github.com/target/console-auth/internal/domain/auth"
	apperrors "github.com/target/console-auth/internal/errors"
	"github.com/target/console-auth/internal/ports"
)

var _ ports.AuditSink = (*AuditRepo)(nil)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 1000
)

// AuditRecord is one persisted auth audit event.
type AuditRecord struct {
	ID         int64     `db:"id"          json:"id"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
	SessionID  string    `db:"session_id"  json:"session_id"`
	Op         string    `db:"op"          json:"op"`
	Result     string    `db:"result"      json:"result"`
	Phase      string    `db:"phase"       json:"phase"`
	Challenge  string    `db:"challenge"   json:"challenge,omitempty"`
	Username   string    `db:"username"    json:"username,omitempty"`
	SubjectID  string    `db:"subject_id"  json:"subject_id,omitempty"`
	ErrorCode  string    `db:"error_code"  json:"error_code,omitempty"`
	Reason     string    `db:"reason"      json:"reason,omitempty"`
	DurationMS int64     `db:"duration_ms" json:"duration_ms"`
}

// AuditFilter narrows List results. Zero values match everything.
type AuditFilter struct {
	SessionID string
	Username  string
	Op        domainauth.Operation
	Result    domainauth.Result
	Since     time.Time
	Limit     int
}

// AuditRepo stores auth audit events in Postgres.
type AuditRepo struct {
	DB  *sql.DB
	now func() time.Time
}

// NewAuditRepo creates a new AuditRepo using the system clock.
func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{DB: db, now: time.Now}
}

// NewAuditRepoWithClock creates a new AuditRepo with a custom clock (useful for tests).
func NewAuditRepoWithClock(db *sql.DB, now func() time.Time) *AuditRepo {
	return &AuditRepo{DB: db, now: now}
}

// Record inserts ev. Events never carry credentials.
func (r *AuditRepo) Record(ctx context.Context, ev domainauth.Event) error {
	if ev.SessionID == "" || ev.Op == "" {
		return apperrors.Validation("audit event requires a session id and operation")
	}
	at := ev.At
	if at.IsZero() {
		at = r.now()
	}
	dur := ev.Duration.Milliseconds()
	if dur < 0 {
		dur = 0
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO auth_audit_events (
			occurred_at, session_id, op, result, phase, challenge, username, subject_id, error_code, reason, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		at.UTC(),
		ev.SessionID,
		string(ev.Op),
		string(ev.Result),
		string(ev.Phase),
		string(ev.Challenge),
		ev.Username,
		ev.SubjectID,
		ev.ErrorCode,
		ev.Reason,
		dur,
	)
	if err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// List returns events newest first.
func (r *AuditRepo) List(ctx context.Context, f AuditFilter) ([]AuditRecord, error) {
	query, args := buildAuditListQuery(f)
	out, err := pgxutil.CollectAll[AuditRecord](ctx, r.DB, query, args...)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return out, nil
}

func buildAuditListQuery(f AuditFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT id, occurred_at, session_id, op, result, phase, challenge, username, subject_id, error_code, reason, duration_ms
		FROM auth_audit_events`)

	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if f.SessionID != "" {
		add("session_id = ?", f.SessionID)
	}
	if f.Username != "" {
		add("username = ?", f.Username)
	}
	if f.Op != "" {
		add("op = ?", string(f.Op))
	}
	if f.Result != "" {
		add("result = ?", string(f.Result))
	}
	if !f.Since.IsZero() {
		add("occurred_at >= ?", f.Since.UTC())
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	limit := f.Limit
	switch {
	case limit <= 0:
		limit = defaultAuditLimit
	case limit > maxAuditLimit:
		limit = maxAuditLimit
	}
	args = append(args, limit)
	b.WriteString(" ORDER BY occurred_at DESC, id DESC LIMIT $" + strconv.Itoa(len(args)))
	return b.String(), args
}

// PurgeBefore deletes events older than cutoff and returns how many were removed.
func (r *AuditRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if cutoff.IsZero() {
		return 0, errors.New("purge cutoff is required")
	}
	res, err := r.DB.ExecContext(ctx, `DELETE FROM auth_audit_events WHERE occurred_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, apperrors.MapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.MapDBError(err)
	}
	return n, nil
}
