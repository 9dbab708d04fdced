package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/lekki-homes/leadflow/internal/model"
)

// PgxPool is the subset of pgxpool.Pool the store uses. pgxmock
// satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Postgres is the shared-deployment Store.
type Postgres struct {
	pool PgxPool
}

var _ Store = (*Postgres)(nil)

// OpenPostgres connects to the database at dsn and pings it.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "store: open postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "store: ping postgres")
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgres wraps an existing pool. Used by tests.
func NewPostgres(pool PgxPool) *Postgres { return &Postgres{pool: pool} }

func (p *Postgres) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS leads (
	id TEXT PRIMARY KEY,
	full_name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	phone TEXT NOT NULL DEFAULT '',
	budget BIGINT NOT NULL DEFAULT 0,
	form_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	interaction_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	tier TEXT NOT NULL,
	pipeline_status TEXT NOT NULL,
	thread_id TEXT NOT NULL DEFAULT '',
	last_email_sent_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
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
	sent_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_emails_provider_message_id ON emails(provider_message_id);
CREATE INDEX IF NOT EXISTS idx_emails_lead_thread ON emails(lead_id, thread_id);
CREATE TABLE IF NOT EXISTS logs (
	id TEXT PRIMARY KEY,
	level TEXT NOT NULL,
	message TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_logs_message ON logs(message, created_at);
`
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return eris.Wrap(err, "store: postgres migrate")
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) CreateLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now

	_, err := p.pool.Exec(ctx, `
INSERT INTO leads (id, full_name, email, phone, budget, form_score, interaction_score,
	total_score, tier, pipeline_status, thread_id, last_email_sent_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		lead.ID, lead.FullName, lead.Email, lead.Phone, lead.Budget,
		lead.FormScore, lead.InteractionScore, lead.TotalScore,
		string(lead.Tier), string(lead.PipelineStatus), lead.ThreadID,
		lead.LastEmailSentAt, lead.CreatedAt, lead.UpdatedAt)
	if err != nil {
		return eris.Wrap(err, "store: create lead")
	}
	return nil
}

func scanLeadPgx(row pgx.Row) (*model.Lead, error) {
	var lead model.Lead
	var tier, status string
	err := row.Scan(&lead.ID, &lead.FullName, &lead.Email, &lead.Phone, &lead.Budget,
		&lead.FormScore, &lead.InteractionScore, &lead.TotalScore,
		&tier, &status, &lead.ThreadID, &lead.LastEmailSentAt,
		&lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return nil, err
	}
	lead.Tier = model.Tier(tier)
	lead.PipelineStatus = model.PipelineStatus(status)
	return &lead, nil
}

func (p *Postgres) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLeadPgx(row)
	if err == pgx.ErrNoRows {
		return nil, &notFoundError{kind: "lead", id: id}
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get lead")
	}
	return lead, nil
}

func (p *Postgres) FindLeadByEmail(ctx context.Context, email string) (*model.Lead, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE lower(email) = lower($1)`, email)
	lead, err := scanLeadPgx(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: find lead by email")
	}
	return lead, nil
}

func (p *Postgres) UpdateLead(ctx context.Context, id string, patch model.LeadPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	sets := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.InteractionScore != nil {
		add("interaction_score", *patch.InteractionScore)
	}
	if patch.TotalScore != nil {
		add("total_score", *patch.TotalScore)
	}
	if patch.Tier != nil {
		add("tier", string(*patch.Tier))
	}
	if patch.PipelineStatus != nil {
		add("pipeline_status", string(*patch.PipelineStatus))
	}
	if patch.ThreadID != nil {
		add("thread_id", *patch.ThreadID)
	}
	if patch.LastEmailSentAt != nil {
		add("last_email_sent_at", *patch.LastEmailSentAt)
	}
	args = append(args, id)

	tag, err := p.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE leads SET %s WHERE id = $%d`, joinSets(sets), len(args)), args...)
	if err != nil {
		return eris.Wrap(err, "store: update lead")
	}
	if tag.RowsAffected() == 0 {
		return &notFoundError{kind: "lead", id: id}
	}
	return nil
}

func (p *Postgres) ListLeads(ctx context.Context) ([]model.Lead, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list leads")
	}
	defer rows.Close()

	var out []model.Lead
	for rows.Next() {
		lead, err := scanLeadPgx(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: list leads scan")
		}
		out = append(out, *lead)
	}
	return out, eris.Wrap(rows.Err(), "store: list leads")
}

func (p *Postgres) CreateEmail(ctx context.Context, rec *model.EmailRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := p.pool.Exec(ctx, `
INSERT INTO emails (id, lead_id, provider_message_id, thread_id, direction, subject,
	body, draft_status, sent_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.LeadID, rec.ProviderMessageID, rec.ThreadID,
		string(rec.Direction), rec.Subject, rec.Body, string(rec.DraftStatus),
		rec.SentAt, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return eris.Wrap(err, "store: create email")
	}
	return nil
}

func scanEmailPgx(row pgx.Row) (*model.EmailRecord, error) {
	var rec model.EmailRecord
	var direction, draftStatus string
	err := row.Scan(&rec.ID, &rec.LeadID, &rec.ProviderMessageID, &rec.ThreadID,
		&direction, &rec.Subject, &rec.Body, &draftStatus,
		&rec.SentAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Direction = model.EmailDirection(direction)
	rec.DraftStatus = model.DraftStatus(draftStatus)
	return &rec, nil
}

func (p *Postgres) GetEmail(ctx context.Context, id string) (*model.EmailRecord, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+emailColumns+` FROM emails WHERE id = $1`, id)
	rec, err := scanEmailPgx(row)
	if err == pgx.ErrNoRows {
		return nil, &notFoundError{kind: "email", id: id}
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get email")
	}
	return rec, nil
}

func (p *Postgres) FindEmailByMessageID(ctx context.Context, providerMessageID string) (*model.EmailRecord, error) {
	if providerMessageID == "" {
		return nil, nil
	}
	row := p.pool.QueryRow(ctx,
		`SELECT `+emailColumns+` FROM emails WHERE provider_message_id = $1 LIMIT 1`, providerMessageID)
	rec, err := scanEmailPgx(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: find email by message id")
	}
	return rec, nil
}

func (p *Postgres) CountInboundInThread(ctx context.Context, leadID, threadID string) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM emails WHERE lead_id = $1 AND thread_id = $2 AND direction = $3`,
		leadID, threadID, string(model.DirectionInbound)).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "store: count inbound in thread")
	}
	return n, nil
}

func (p *Postgres) ListDrafts(ctx context.Context, status model.DraftStatus) ([]model.EmailRecord, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+emailColumns+` FROM emails WHERE direction = $1 AND draft_status = $2 ORDER BY created_at`,
		string(model.DirectionDraft), string(status))
	if err != nil {
		return nil, eris.Wrap(err, "store: list drafts")
	}
	defer rows.Close()

	var out []model.EmailRecord
	for rows.Next() {
		rec, err := scanEmailPgx(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: list drafts scan")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "store: list drafts")
}

func (p *Postgres) UpdateDraftStatus(ctx context.Context, id string, status model.DraftStatus, sentAt *time.Time) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE emails SET draft_status = $1, sent_at = COALESCE($2, sent_at), updated_at = $3 WHERE id = $4`,
		string(status), sentAt, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrap(err, "store: update draft status")
	}
	if tag.RowsAffected() == 0 {
		return &notFoundError{kind: "email", id: id}
	}
	return nil
}

func (p *Postgres) AppendLog(ctx context.Context, rec *model.LogRecord) error {
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
	_, err := p.pool.Exec(ctx,
		`INSERT INTO logs (id, level, message, metadata, created_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, string(rec.Level), rec.Message, meta, rec.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "store: append log")
	}
	return nil
}

func scanLogPgx(row pgx.Row) (*model.LogRecord, error) {
	var rec model.LogRecord
	var level string
	var meta []byte
	if err := row.Scan(&rec.ID, &level, &rec.Message, &meta, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Level = model.LogLevel(level)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

func (p *Postgres) LatestLogByMessage(ctx context.Context, message string) (*model.LogRecord, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, level, message, metadata, created_at FROM logs
		 WHERE message = $1 ORDER BY created_at DESC LIMIT 1`, message)
	rec, err := scanLogPgx(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: latest log by message")
	}
	return rec, nil
}

func (p *Postgres) ListLogs(ctx context.Context, limit int) ([]model.LogRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id, level, message, metadata, created_at FROM logs
		 ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list logs")
	}
	defer rows.Close()

	var out []model.LogRecord
	for rows.Next() {
		rec, err := scanLogPgx(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: list logs scan")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "store: list logs")
}
