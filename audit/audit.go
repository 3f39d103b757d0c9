// Package audit keeps a SQLite trail of service calls: which operation ran
// for which page, over which transport, how long it took and how it ended.
// Entries are batched by a background goroutine; Close flushes them.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/elderly/dbopen"
	"github.com/hazyhaar/elderly/idgen"
	"github.com/hazyhaar/elderly/kit"
)

// Schema is the audit_log DDL.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_log (
    entry_id      TEXT PRIMARY KEY,
    timestamp     INTEGER NOT NULL,
    action        TEXT NOT NULL,
    transport     TEXT NOT NULL,
    request_id    TEXT,
    parameters    TEXT NOT NULL DEFAULT '{}',
    result        TEXT,
    error_message TEXT,
    duration_ms   INTEGER,
    status        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_log(action, timestamp DESC);
`

const (
	flushEvery = 32
	maxField   = 4096
)

// Entry is one recorded call.
type Entry struct {
	EntryID      string    `json:"entry_id"`
	Timestamp    time.Time `json:"timestamp"`
	Action       string    `json:"action"`
	Transport    string    `json:"transport"`
	RequestID    string    `json:"request_id,omitempty"`
	Parameters   string    `json:"parameters"`
	Result       string    `json:"result,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	Status       string    `json:"status"` // "success" or "error"
}

// Summarizer is implemented by requests and responses whose full JSON is
// too large for the trail.
type Summarizer interface {
	AuditSummary() any
}

// Logger persists entries.
type Logger struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger
	ch     chan *Entry
	stop   chan struct{}
	done   chan struct{}
}

// Option configures a Logger.
type Option func(*Logger)

// WithIDGenerator sets the entry id generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(l *Logger) { l.newID = gen }
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) { l.logger = logger }
}

// New applies the schema to db and starts the flush goroutine.
func New(db *sql.DB, opts ...Option) (*Logger, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("audit: schema: %w", err)
	}
	l := &Logger{
		db:     db,
		newID:  idgen.Prefixed("audit_", idgen.Default),
		logger: slog.Default(),
		ch:     make(chan *Entry, 1000),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	go l.flushLoop()
	return l, nil
}

// Log inserts an entry synchronously.
func (l *Logger) Log(ctx context.Context, e *Entry) error {
	l.fillDefaults(e)
	return l.insert(ctx, e)
}

// LogAsync queues an entry. A full buffer falls back to a synchronous insert.
func (l *Logger) LogAsync(e *Entry) {
	l.fillDefaults(e)
	select {
	case l.ch <- e:
	default:
		l.logger.Warn("audit: buffer full, sync fallback", "action", e.Action)
		if err := l.insert(context.Background(), e); err != nil {
			l.logger.Error("audit: sync fallback failed", "error", err)
		}
	}
}

// Middleware records every call of an endpoint under action.
func Middleware(l *Logger, action string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			e := &Entry{
				Timestamp:  start,
				Action:     action,
				Transport:  kit.GetTransport(ctx),
				RequestID:  kit.GetRequestID(ctx),
				Parameters: compact(req),
				DurationMs: time.Since(start).Milliseconds(),
			}
			if err != nil {
				e.ErrorMessage = err.Error()
			} else {
				e.Result = compact(resp)
			}
			l.LogAsync(e)
			return resp, err
		}
	}
}

// Recent returns the newest entries, optionally for one action.
func (l *Logger) Recent(ctx context.Context, action string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT entry_id, timestamp, action, transport, request_id, parameters,
		result, error_message, duration_ms, status FROM audit_log`
	var args []any
	if action != "" {
		q += " WHERE action = ?"
		args = append(args, action)
	}
	q += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		var reqID, result, errMsg sql.NullString
		var dur sql.NullInt64
		if err := rows.Scan(&e.EntryID, &ts, &e.Action, &e.Transport, &reqID,
			&e.Parameters, &result, &errMsg, &dur, &e.Status); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts)
		e.RequestID = reqID.String
		e.Result = result.String
		e.ErrorMessage = errMsg.String
		e.DurationMs = dur.Int64
		out = append(out, e)
	}
	return out, rows.Err()
}

// Cleanup deletes entries older than cutoff.
func (l *Logger) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := dbopen.Exec(ctx, l.db, "DELETE FROM audit_log WHERE timestamp < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("audit: cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close drains the buffer and stops the flush goroutine.
func (l *Logger) Close() error {
	close(l.stop)
	<-l.done
	return nil
}

func (l *Logger) fillDefaults(e *Entry) {
	if e.EntryID == "" {
		e.EntryID = l.newID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Transport == "" {
		e.Transport = "http"
	}
	if e.Parameters == "" {
		e.Parameters = "{}"
	}
	if e.Status == "" {
		if e.ErrorMessage != "" {
			e.Status = "error"
		} else {
			e.Status = "success"
		}
	}
}

const insertSQL = `INSERT INTO audit_log
	(entry_id, timestamp, action, transport, request_id, parameters,
	 result, error_message, duration_ms, status)
	VALUES (?,?,?,?,?,?,?,?,?,?)`

func (l *Logger) insert(ctx context.Context, e *Entry) error {
	_, err := dbopen.Exec(ctx, l.db, insertSQL, l.args(e)...)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

func (l *Logger) args(e *Entry) []any {
	return []any{e.EntryID, e.Timestamp.UnixMilli(), e.Action, e.Transport, e.RequestID,
		e.Parameters, e.Result, e.ErrorMessage, e.DurationMs, e.Status}
}

func (l *Logger) flushLoop() {
	defer close(l.done)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	batch := make([]*Entry, 0, flushEvery)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		tx, err := l.db.BeginTx(ctx, nil)
		if err != nil {
			l.logger.Error("audit: begin tx", "error", err)
			return
		}
		stmt, err := tx.PrepareContext(ctx, insertSQL)
		if err != nil {
			tx.Rollback()
			l.logger.Error("audit: prepare", "error", err)
			return
		}
		defer stmt.Close()
		for _, e := range batch {
			if _, err := stmt.ExecContext(ctx, l.args(e)...); err != nil {
				l.logger.Error("audit: insert", "error", err, "entry_id", e.EntryID)
			}
		}
		if err := tx.Commit(); err != nil {
			l.logger.Error("audit: commit", "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-l.stop:
			for {
				select {
				case e := <-l.ch:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		case e := <-l.ch:
			batch = append(batch, e)
			if len(batch) >= flushEvery {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// compact is the JSON of v, or of its summary, cut to maxField bytes.
func compact(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(Summarizer); ok {
		v = s.AuditSummary()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	if len(b) > maxField {
		b = b[:maxField]
	}
	return string(b)
}
