package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/lekki-homes/leadflow/internal/model"
)

// SQLite is the file-backed Store for single-box deployments.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (creating if necessary) the database at path.
// Pass ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "store: open sqlite")
	}
	// The driver serializes access; a single connection avoids
	// SQLITE_BUSY on concurrent writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "store: sqlite pragmas")
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS leads (
	id TEXT PRIMARY KEY,
	full_name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	phone TEXT NOT NULL DEFAULT '',
	budget INTEGER NOT NULL DEFAULT 0,
	form_score REAL NOT NULL DEFAULT 0,
	interaction_score REAL NOT NULL DEFAULT 0,
	total_score REAL NOT NULL DEFAULT 0,
	tier TEXT NOT NULL,
	pipeline_status TEXT NOT NULL,
	thread_id TEXT NOT NULL DEFAULT '',
	last_email_sent_at TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS emails (
	id TEXT PRIMARY KEY,
	lead_id TEXT NOT NULL REFERENCES leads(id),
	provider_message_id TEXT NOT NULL DEFAULT '',
	thread_id TEXT NOT NULL DEFAULT '',
	direction TEXT NOT NULL,
	subject TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL,
	draft_status TEXT NOT NULL DEFAULT '',
	sent_at TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_emails_provider_message_id ON emails(provider_message_id);
CREATE INDEX IF NOT EXISTS idx_emails_lead_thread ON emails(lead_id, thread_id);
CREATE TABLE IF NOT EXISTS logs (
	id TEXT PRIMARY KEY,
	level TEXT NOT NULL,
	message TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_logs_message ON logs(message, created_at);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return eris.Wrap(err, "store: sqlite migrate")
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

const timeLayout = time.RFC3339Nano

func encodeTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func decodeTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := decodeTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *SQLite) CreateLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
INSERT INTO leads (id, full_name, email, phone, budget, form_score, interaction_score,
	total_score, tier, pipeline_status, thread_id, last_email_sent_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.FullName, lead.Email, lead.Phone, lead.Budget,
		lead.FormScore, lead.InteractionScore, lead.TotalScore,
		string(lead.Tier), string(lead.PipelineStatus), lead.ThreadID,
		encodeTimePtr(lead.LastEmailSentAt), encodeTime(lead.CreatedAt), encodeTime(lead.UpdatedAt))
	if err != nil {
		return eris.Wrap(err, "store: create lead")
	}
	return nil
}

const leadColumns = `id, full_name, email, phone, budget, form_score, interaction_score,
	total_score, tier, pipeline_status, thread_id, last_email_sent_at, created_at, updated_at`

func scanLead(row interface{ Scan(...any) error }) (*model.Lead, error) {
	var lead model.Lead
	var tier, status, lastSent, createdAt, updatedAt sql.NullString
	err := row.Scan(&lead.ID, &lead.FullName, &lead.Email, &lead.Phone, &lead.Budget,
		&lead.FormScore, &lead.InteractionScore, &lead.TotalScore,
		&tier, &status, &lead.ThreadID, &lastSent, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	lead.Tier = model.Tier(tier.String)
	lead.PipelineStatus = model.PipelineStatus(status.String)
	if lead.LastEmailSentAt, err = decodeTimePtr(lastSent); err != nil {
		return nil, err
	}
	if lead.CreatedAt, err = decodeTime(createdAt.String); err != nil {
		return nil, err
	}
	if lead.UpdatedAt, err = decodeTime(updatedAt.String); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (s *SQLite) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	lead, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, &notFoundError{kind: "lead", id: id}
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get lead")
	}
	return lead, nil
}

func (s *SQLite) FindLeadByEmail(ctx context.Context, email string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE lower(email) = lower(?)`, email)
	lead, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: find lead by email")
	}
	return lead, nil
}

func (s *SQLite) UpdateLead(ctx context.Context, id string, patch model.LeadPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	sets := []string{"updated_at = ?"}
	args := []any{encodeTime(time.Now().UTC())}
	if patch.InteractionScore != nil {
		sets = append(sets, "interaction_score = ?")
		args = append(args, *patch.InteractionScore)
	}
	if patch.TotalScore != nil {
		sets = append(sets, "total_score = ?")
		args = append(args, *patch.TotalScore)
	}
	if patch.Tier != nil {
		sets = append(sets, "tier = ?")
		args = append(args, string(*patch.Tier))
	}
	if patch.PipelineStatus != nil {
		sets = append(sets, "pipeline_status = ?")
		args = append(args, string(*patch.PipelineStatus))
	}
	if patch.ThreadID != nil {
		sets = append(sets, "thread_id = ?")
		args = append(args, *patch.ThreadID)
	}
	if patch.LastEmailSentAt != nil {
		sets = append(sets, "last_email_sent_at = ?")
		args = append(args, encodeTime(*patch.LastEmailSentAt))
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET `+joinSets(sets)+` WHERE id = ?`, args...)
	if err != nil {
		return eris.Wrap(err, "store: update lead")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &notFoundError{kind: "lead", id: id}
	}
	return nil
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}

func (s *SQLite) ListLeads(ctx context.Context) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM leads ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list leads")
	}
	defer rows.Close()

	var out []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: list leads scan")
		}
		out = append(out, *lead)
	}
	return out, eris.Wrap(rows.Err(), "store: list leads")
}

func (s *SQLite) CreateEmail(ctx context.Context, rec *model.EmailRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
INSERT INTO emails (id, lead_id, provider_message_id, thread_id, direction, subject,
	body, draft_status, sent_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.LeadID, rec.ProviderMessageID, rec.ThreadID,
		string(rec.Direction), rec.Subject, rec.Body, string(rec.DraftStatus),
		encodeTimePtr(rec.SentAt), encodeTime(rec.CreatedAt), encodeTime(rec.UpdatedAt))
	if err != nil {
		return eris.Wrap(err, "store: create email")
	}
	return nil
}

const emailColumns = `id, lead_id, provider_message_id, thread_id, direction, subject,
	body, draft_status, sent_at, created_at, updated_at`

func scanEmail(row interface{ Scan(...any) error }) (*model.EmailRecord, error) {
	var rec model.EmailRecord
	var direction, draftStatus string
	var sentAt, createdAt, updatedAt sql.NullString
	err := row.Scan(&rec.ID, &rec.LeadID, &rec.ProviderMessageID, &rec.ThreadID,
		&direction, &rec.Subject, &rec.Body, &draftStatus,
		&sentAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	rec.Direction = model.EmailDirection(direction)
	rec.DraftStatus = model.DraftStatus(draftStatus)
	if rec.SentAt, err = decodeTimePtr(sentAt); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = decodeTime(createdAt.String); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = decodeTime(updatedAt.String); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLite) GetEmail(ctx context.Context, id string) (*model.EmailRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+emailColumns+` FROM emails WHERE id = ?`, id)
	rec, err := scanEmail(row)
	if err == sql.ErrNoRows {
		return nil, &notFoundError{kind: "email", id: id}
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get email")
	}
	return rec, nil
}

func (s *SQLite) FindEmailByMessageID(ctx context.Context, providerMessageID string) (*model.EmailRecord, error) {
	if providerMessageID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+emailColumns+` FROM emails WHERE provider_message_id = ? LIMIT 1`, providerMessageID)
	rec, err := scanEmail(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: find email by message id")
	}
	return rec, nil
}

func (s *SQLite) CountInboundInThread(ctx context.Context, leadID, threadID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM emails WHERE lead_id = ? AND thread_id = ? AND direction = ?`,
		leadID, threadID, string(model.DirectionInbound)).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "store: count inbound in thread")
	}
	return n, nil
}

func (s *SQLite) ListDrafts(ctx context.Context, status model.DraftStatus) ([]model.EmailRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+emailColumns+` FROM emails WHERE direction = ? AND draft_status = ? ORDER BY created_at`,
		string(model.DirectionDraft), string(status))
	if err != nil {
		return nil, eris.Wrap(err, "store: list drafts")
	}
	defer rows.Close()

	var out []model.EmailRecord
	for rows.Next() {
		rec, err := scanEmail(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: list drafts scan")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "store: list drafts")
}

func (s *SQLite) UpdateDraftStatus(ctx context.Context, id string, status model.DraftStatus, sentAt *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE emails SET draft_status = ?, sent_at = COALESCE(?, sent_at), updated_at = ? WHERE id = ?`,
		string(status), encodeTimePtr(sentAt), encodeTime(time.Now().UTC()), id)
	if err != nil {
		return eris.Wrap(err, "store: update draft status")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &notFoundError{kind: "email", id: id}
	}
	return nil
}

func (s *SQLite) AppendLog(ctx context.Context, rec *model.LogRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	meta := []byte("{}")
	if rec.Metadata != nil {
		var err error
		if meta, err = json.Marshal(rec.Metadata); err != nil {
			return eris.Wrap(err, "store: encode log metadata")
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (id, level, message, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Level), rec.Message, string(meta), encodeTime(rec.CreatedAt))
	if err != nil {
		return eris.Wrap(err, "store: append log")
	}
	return nil
}

func scanLog(row interface{ Scan(...any) error }) (*model.LogRecord, error) {
	var rec model.LogRecord
	var level, meta, createdAt string
	if err := row.Scan(&rec.ID, &level, &rec.Message, &meta, &createdAt); err != nil {
		return nil, err
	}
	rec.Level = model.LogLevel(level)
	if err := json.Unmarshal([]byte(meta), &rec.Metadata); err != nil {
		return nil, err
	}
	var err error
	if rec.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLite) LatestLogByMessage(ctx context.Context, message string) (*model.LogRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, level, message, metadata, created_at FROM logs
		 WHERE message = ? ORDER BY created_at DESC LIMIT 1`, message)
	rec, err := scanLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: latest log by message")
	}
	return rec, nil
}

func (s *SQLite) ListLogs(ctx context.Context, limit int) ([]model.LogRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, level, message, metadata, created_at FROM logs
		 ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list logs")
	}
	defer rows.Close()

	var out []model.LogRecord
	for rows.Next() {
		rec, err := scanLog(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: list logs scan")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "store: list logs")
}
