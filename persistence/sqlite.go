package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/lexcodex/adpilot/framework"
)

// SQLiteStore persists workspace state in a SQLite database. Structured
// fields (context maps, tool traces, audiences) are stored as JSON columns.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens/creates the database at dbPath with WAL journaling.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		page_id TEXT,
		scope TEXT NOT NULL,
		title TEXT,
		state TEXT NOT NULL,
		context TEXT,
		archived BOOLEAN NOT NULL DEFAULT 0,
		archived_at TIMESTAMP,
		archive_summary TEXT,
		pinned BOOLEAN NOT NULL DEFAULT 0,
		pinned_content TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_scope
		ON conversations(workspace_id, page_id, scope);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT,
		tool_trace TEXT,
		created_at TIMESTAMP NOT NULL,
		UNIQUE(conversation_id, seq),
		FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS drafts (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		workspace_id TEXT,
		campaign_name TEXT,
		ad_name TEXT,
		primary_text TEXT,
		headline TEXT,
		description TEXT,
		cta TEXT,
		media_url TEXT,
		target_audience TEXT,
		daily_budget REAL,
		objective TEXT,
		status TEXT NOT NULL,
		variant_number INTEGER NOT NULL DEFAULT 1,
		parent_draft_id TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_drafts_conversation ON drafts(conversation_id);

	CREATE TABLE IF NOT EXISTS activity_log (
		id TEXT PRIMARY KEY,
		conversation_id TEXT,
		timestamp TIMESTAMP NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		entity_type TEXT,
		entity_id TEXT,
		rationale TEXT,
		decision TEXT,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_activity_conversation ON activity_log(conversation_id);

	CREATE TABLE IF NOT EXISTS workspaces (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		default_daily_budget REAL,
		currency TEXT,
		default_objective TEXT,
		timezone TEXT,
		ad_account_connected BOOLEAN NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS pages (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		name TEXT NOT NULL,
		tone TEXT,
		cta_style TEXT,
		target_markets TEXT,
		default_daily_budget REAL,
		is_primary BOOLEAN NOT NULL DEFAULT 0,
		included BOOLEAN NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_pages_workspace ON pages(workspace_id);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		price REAL,
		currency TEXT,
		usp TEXT,
		target_audience TEXT,
		tags TEXT,
		page_ids TEXT,
		active BOOLEAN NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS past_winners (
		id TEXT PRIMARY KEY,
		page_id TEXT NOT NULL,
		campaign_name TEXT,
		ad_content TEXT,
		metrics TEXT,
		factors TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_winners_page ON past_winners(page_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func marshalJSON(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return string(data), nil
}

func unmarshalJSON(raw sql.NullString, v interface{}) error {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw.String), v)
}

const conversationColumns = `id, workspace_id, page_id, scope, title, state, context,
	archived, archived_at, archive_summary, pinned, pinned_content, created_at, updated_at`

func scanConversation(row interface{ Scan(...interface{}) error }) (*framework.Conversation, error) {
	var conv framework.Conversation
	var pageID, title, contextJSON, archiveSummary, pinnedContent sql.NullString
	var archivedAt sql.NullTime
	err := row.Scan(
		&conv.ID, &conv.WorkspaceID, &pageID, &conv.Scope, &title, &conv.State,
		&contextJSON, &conv.Archived, &archivedAt, &archiveSummary,
		&conv.Pinned, &pinnedContent, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	conv.PageID = pageID.String
	conv.Title = title.String
	conv.ArchiveSummary = archiveSummary.String
	conv.PinnedContent = pinnedContent.String
	if archivedAt.Valid {
		conv.ArchivedAt = archivedAt.Time
	}
	conv.Context = make(map[string]interface{})
	if err := unmarshalJSON(contextJSON, &conv.Context); err != nil {
		return nil, fmt.Errorf("decode conversation context: %w", err)
	}
	return &conv, nil
}

// Conversation returns the record by id.
func (s *SQLiteStore) Conversation(ctx context.Context, id string) (*framework.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, framework.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	return conv, nil
}

// GetOrCreateConversation returns the unarchived conversation for the scope
// key, creating it on first use.
func (s *SQLiteStore) GetOrCreateConversation(ctx context.Context, workspaceID, pageID string, scope framework.Scope, title string) (*framework.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE workspace_id = ? AND IFNULL(page_id,'') = ? AND scope = ? AND archived = 0
		 ORDER BY created_at LIMIT 1`,
		workspaceID, pageID, string(scope))
	conv, err := scanConversation(row)
	if err == nil {
		return conv, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}

	now := time.Now().UTC()
	conv = &framework.Conversation{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		PageID:      pageID,
		Scope:       scope,
		Title:       title,
		State:       framework.StateIdle,
		Context:     make(map[string]interface{}),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.SaveConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// SaveConversation upserts the record.
func (s *SQLiteStore) SaveConversation(ctx context.Context, conv *framework.Conversation) error {
	conv.UpdatedAt = time.Now().UTC()
	contextJSON, err := marshalJSON(conv.Context)
	if err != nil {
		return err
	}
	var archivedAt interface{}
	if !conv.ArchivedAt.IsZero() {
		archivedAt = conv.ArchivedAt
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (
			id, workspace_id, page_id, scope, title, state, context,
			archived, archived_at, archive_summary, pinned, pinned_content,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title,
			state=excluded.state,
			context=excluded.context,
			archived=excluded.archived,
			archived_at=excluded.archived_at,
			archive_summary=excluded.archive_summary,
			pinned=excluded.pinned,
			pinned_content=excluded.pinned_content,
			updated_at=excluded.updated_at`,
		conv.ID, conv.WorkspaceID, conv.PageID, string(conv.Scope), conv.Title,
		string(conv.State), contextJSON, conv.Archived, archivedAt,
		conv.ArchiveSummary, conv.Pinned, conv.PinnedContent,
		conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) queryConversations(ctx context.Context, query string, args ...interface{}) ([]*framework.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()
	var out []*framework.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

// ListConversations returns every conversation in the workspace.
func (s *SQLiteStore) ListConversations(ctx context.Context, workspaceID string) ([]*framework.Conversation, error) {
	return s.queryConversations(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE workspace_id = ? ORDER BY created_at`, workspaceID)
}

// LegacyConversations returns unarchived legacy-scope conversations.
func (s *SQLiteStore) LegacyConversations(ctx context.Context, workspaceID string) ([]*framework.Conversation, error) {
	return s.queryConversations(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE workspace_id = ? AND scope = ? AND archived = 0 ORDER BY created_at`,
		workspaceID, string(framework.ScopeLegacyArchived))
}

// AppendMessage assigns the next sequence number and stores the message. The
// UNIQUE(conversation_id, seq) constraint guards against concurrent writers.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *framework.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	traceJSON, err := marshalJSON(msg.ToolTrace)
	if err != nil {
		return err
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT IFNULL(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = ?`,
		msg.ConversationID).Scan(&msg.Seq)
	if err != nil {
		return fmt.Errorf("next message seq: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, seq, role, content, tool_trace, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Seq, msg.Role, msg.Content, traceJSON, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// Messages returns the most recent messages in chronological order.
func (s *SQLiteStore) Messages(ctx context.Context, conversationID string, limit int) ([]framework.ChatMessage, error) {
	query := `SELECT id, conversation_id, seq, role, content, tool_trace, created_at
		FROM messages WHERE conversation_id = ? ORDER BY seq DESC`
	args := []interface{}{conversationID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()
	var out []framework.ChatMessage
	for rows.Next() {
		var msg framework.ChatMessage
		var content, traceJSON sql.NullString
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Seq, &msg.Role,
			&content, &traceJSON, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Content = content.String
		if err := unmarshalJSON(traceJSON, &msg.ToolTrace); err != nil {
			return nil, fmt.Errorf("decode tool trace: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// reverse into chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// LastUserMessage returns the newest user-authored message, if any.
func (s *SQLiteStore) LastUserMessage(ctx context.Context, conversationID string) (*framework.ChatMessage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, conversation_id, seq, role, content, tool_trace, created_at
		 FROM messages WHERE conversation_id = ? AND role = ?
		 ORDER BY seq DESC LIMIT 1`,
		conversationID, framework.RoleUser)
	var msg framework.ChatMessage
	var content, traceJSON sql.NullString
	err := row.Scan(&msg.ID, &msg.ConversationID, &msg.Seq, &msg.Role,
		&content, &traceJSON, &msg.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, framework.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	msg.Content = content.String
	if err := unmarshalJSON(traceJSON, &msg.ToolTrace); err != nil {
		return nil, fmt.Errorf("decode tool trace: %w", err)
	}
	return &msg, nil
}

// SaveDraft upserts a draft record.
func (s *SQLiteStore) SaveDraft(ctx context.Context, draft *framework.AdDraft) error {
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now
	audienceJSON, err := marshalJSON(draft.TargetAudience)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO drafts (
			id, conversation_id, workspace_id, campaign_name, ad_name,
			primary_text, headline, description, cta, media_url,
			target_audience, daily_budget, objective, status,
			variant_number, parent_draft_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			campaign_name=excluded.campaign_name,
			ad_name=excluded.ad_name,
			primary_text=excluded.primary_text,
			headline=excluded.headline,
			description=excluded.description,
			cta=excluded.cta,
			media_url=excluded.media_url,
			target_audience=excluded.target_audience,
			daily_budget=excluded.daily_budget,
			objective=excluded.objective,
			status=excluded.status,
			variant_number=excluded.variant_number,
			parent_draft_id=excluded.parent_draft_id,
			updated_at=excluded.updated_at`,
		draft.ID, draft.ConversationID, draft.WorkspaceID, draft.CampaignName,
		draft.AdName, draft.PrimaryText, draft.Headline, draft.Description,
		draft.CTA, draft.MediaURL, audienceJSON, draft.DailyBudget,
		draft.Objective, string(draft.Status), draft.VariantNumber,
		draft.ParentDraftID, draft.CreatedAt, draft.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert draft: %w", err)
	}
	return nil
}

const draftColumns = `id, conversation_id, workspace_id, campaign_name, ad_name,
	primary_text, headline, description, cta, media_url, target_audience,
	daily_budget, objective, status, variant_number, parent_draft_id,
	created_at, updated_at`

func scanDraft(row interface{ Scan(...interface{}) error }) (*framework.AdDraft, error) {
	var d framework.AdDraft
	var workspaceID, campaignName, adName, primaryText, headline, description,
		cta, mediaURL, audienceJSON, objective, parentDraftID sql.NullString
	var dailyBudget sql.NullFloat64
	err := row.Scan(
		&d.ID, &d.ConversationID, &workspaceID, &campaignName, &adName,
		&primaryText, &headline, &description, &cta, &mediaURL, &audienceJSON,
		&dailyBudget, &objective, &d.Status, &d.VariantNumber, &parentDraftID,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.WorkspaceID = workspaceID.String
	d.CampaignName = campaignName.String
	d.AdName = adName.String
	d.PrimaryText = primaryText.String
	d.Headline = headline.String
	d.Description = description.String
	d.CTA = cta.String
	d.MediaURL = mediaURL.String
	d.DailyBudget = dailyBudget.Float64
	d.Objective = objective.String
	d.ParentDraftID = parentDraftID.String
	if err := unmarshalJSON(audienceJSON, &d.TargetAudience); err != nil {
		return nil, fmt.Errorf("decode target audience: %w", err)
	}
	return &d, nil
}

// Draft returns a draft by id.
func (s *SQLiteStore) Draft(ctx context.Context, id string) (*framework.AdDraft, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE id = ?`, id)
	draft, err := scanDraft(row)
	if err == sql.ErrNoRows {
		return nil, framework.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan draft: %w", err)
	}
	return draft, nil
}

// LatestDraft returns the newest draft in the conversation.
func (s *SQLiteStore) LatestDraft(ctx context.Context, conversationID string) (*framework.AdDraft, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE conversation_id = ?
		 ORDER BY created_at DESC, variant_number DESC LIMIT 1`, conversationID)
	draft, err := scanDraft(row)
	if err == sql.ErrNoRows {
		return nil, framework.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan draft: %w", err)
	}
	return draft, nil
}

// Drafts returns all drafts for the conversation, oldest first.
func (s *SQLiteStore) Drafts(ctx context.Context, conversationID string) ([]*framework.AdDraft, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE conversation_id = ?
		 ORDER BY created_at, variant_number`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query drafts: %w", err)
	}
	defer rows.Close()
	var out []*framework.AdDraft
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		out = append(out, draft)
	}
	return out, rows.Err()
}

// Record appends one activity entry. The primary key makes keyed appends
// idempotent: a duplicate id is rejected, never doubled.
func (s *SQLiteStore) Record(ctx context.Context, entry framework.ActivityEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	decisionJSON, err := marshalJSON(entry.Decision)
	if err != nil {
		return err
	}
	metadataJSON, err := marshalJSON(entry.Metadata)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (
			id, conversation_id, timestamp, actor, action,
			entity_type, entity_id, rationale, decision, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		entry.ID, entry.ConversationID, entry.Timestamp, entry.Actor,
		entry.Action, entry.EntityType, entry.EntityID, entry.Rationale,
		decisionJSON, metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("insert activity entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("activity rows affected: %w", err)
	}
	if affected == 0 {
		return framework.ErrDuplicateEntry
	}
	return nil
}

// Entries returns the activity log for a conversation in append order. An
// empty conversationID returns the whole log.
func (s *SQLiteStore) Entries(ctx context.Context, conversationID string) ([]framework.ActivityEntry, error) {
	query := `SELECT id, conversation_id, timestamp, actor, action,
		entity_type, entity_id, rationale, decision, metadata
		FROM activity_log`
	var args []interface{}
	if conversationID != "" {
		query += ` WHERE conversation_id = ?`
		args = append(args, conversationID)
	}
	query += ` ORDER BY timestamp, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()
	var out []framework.ActivityEntry
	for rows.Next() {
		var entry framework.ActivityEntry
		var convID, entityType, entityID, rationale, decisionJSON, metadataJSON sql.NullString
		if err := rows.Scan(&entry.ID, &convID, &entry.Timestamp, &entry.Actor,
			&entry.Action, &entityType, &entityID, &rationale,
			&decisionJSON, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		entry.ConversationID = convID.String
		entry.EntityType = entityType.String
		entry.EntityID = entityID.String
		entry.Rationale = rationale.String
		if err := unmarshalJSON(decisionJSON, &entry.Decision); err != nil {
			return nil, fmt.Errorf("decode guardrail decision: %w", err)
		}
		if err := unmarshalJSON(metadataJSON, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("decode activity metadata: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Workspace returns workspace settings by id.
func (s *SQLiteStore) Workspace(ctx context.Context, id string) (*framework.WorkspaceSettings, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, default_daily_budget, currency, default_objective,
		 timezone, ad_account_connected FROM workspaces WHERE id = ?`, id)
	var ws framework.WorkspaceSettings
	var currency, objective, tz sql.NullString
	var budget sql.NullFloat64
	err := row.Scan(&ws.ID, &ws.Name, &budget, &currency, &objective, &tz, &ws.AdAccountConnected)
	if err == sql.ErrNoRows {
		return nil, framework.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan workspace: %w", err)
	}
	ws.DefaultDailyBudget = budget.Float64
	ws.Currency = currency.String
	ws.DefaultObjective = objective.String
	ws.Timezone = tz.String
	return &ws, nil
}

// SaveWorkspace upserts workspace settings.
func (s *SQLiteStore) SaveWorkspace(ctx context.Context, ws *framework.WorkspaceSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspaces (id, name, default_daily_budget, currency,
			default_objective, timezone, ad_account_connected)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			default_daily_budget=excluded.default_daily_budget,
			currency=excluded.currency,
			default_objective=excluded.default_objective,
			timezone=excluded.timezone,
			ad_account_connected=excluded.ad_account_connected`,
		ws.ID, ws.Name, ws.DefaultDailyBudget, ws.Currency,
		ws.DefaultObjective, ws.Timezone, ws.AdAccountConnected,
	)
	if err != nil {
		return fmt.Errorf("upsert workspace: %w", err)
	}
	return nil
}

func scanPage(row interface{ Scan(...interface{}) error }) (*framework.PageSettings, error) {
	var page framework.PageSettings
	var tone, ctaStyle, marketsJSON sql.NullString
	var budget sql.NullFloat64
	err := row.Scan(&page.ID, &page.WorkspaceID, &page.Name, &tone, &ctaStyle,
		&marketsJSON, &budget, &page.Primary, &page.Included)
	if err != nil {
		return nil, err
	}
	page.Tone = tone.String
	page.CTAStyle = ctaStyle.String
	page.DefaultDailyBudget = budget.Float64
	if err := unmarshalJSON(marketsJSON, &page.TargetMarkets); err != nil {
		return nil, fmt.Errorf("decode target markets: %w", err)
	}
	return &page, nil
}

// Page returns page settings by id.
func (s *SQLiteStore) Page(ctx context.Context, id string) (*framework.PageSettings, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, name, tone, cta_style, target_markets,
		 default_daily_budget, is_primary, included FROM pages WHERE id = ?`, id)
	page, err := scanPage(row)
	if err == sql.ErrNoRows {
		return nil, framework.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan page: %w", err)
	}
	return page, nil
}

// Pages returns every page in the workspace.
func (s *SQLiteStore) Pages(ctx context.Context, workspaceID string) ([]framework.PageSettings, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace_id, name, tone, cta_style, target_markets,
		 default_daily_budget, is_primary, included
		 FROM pages WHERE workspace_id = ? ORDER BY id`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()
	var out []framework.PageSettings
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		out = append(out, *page)
	}
	return out, rows.Err()
}

// SavePage upserts page settings.
func (s *SQLiteStore) SavePage(ctx context.Context, page *framework.PageSettings) error {
	marketsJSON, err := marshalJSON(page.TargetMarkets)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pages (id, workspace_id, name, tone, cta_style,
			target_markets, default_daily_budget, is_primary, included)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workspace_id=excluded.workspace_id,
			name=excluded.name,
			tone=excluded.tone,
			cta_style=excluded.cta_style,
			target_markets=excluded.target_markets,
			default_daily_budget=excluded.default_daily_budget,
			is_primary=excluded.is_primary,
			included=excluded.included`,
		page.ID, page.WorkspaceID, page.Name, page.Tone, page.CTAStyle,
		marketsJSON, page.DefaultDailyBudget, page.Primary, page.Included,
	)
	if err != nil {
		return fmt.Errorf("upsert page: %w", err)
	}
	return nil
}

func scanProduct(row interface{ Scan(...interface{}) error }) (*framework.Product, error) {
	var p framework.Product
	var description, currency, usp, audience, tagsJSON, pageIDsJSON sql.NullString
	var price sql.NullFloat64
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.Name, &description, &price,
		&currency, &usp, &audience, &tagsJSON, &pageIDsJSON, &p.Active)
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	p.Price = price.Float64
	p.Currency = currency.String
	p.USP = usp.String
	p.TargetAudience = audience.String
	if err := unmarshalJSON(tagsJSON, &p.Tags); err != nil {
		return nil, fmt.Errorf("decode product tags: %w", err)
	}
	if err := unmarshalJSON(pageIDsJSON, &p.PageIDs); err != nil {
		return nil, fmt.Errorf("decode product pages: %w", err)
	}
	return &p, nil
}

// Product returns a product by id.
func (s *SQLiteStore) Product(ctx context.Context, id string) (*framework.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, name, description, price, currency, usp,
		 target_audience, tags, page_ids, active FROM products WHERE id = ?`, id)
	product, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, framework.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return product, nil
}

// ProductsForPage returns active products tagged to the page. Page links live
// in a JSON column, so the filter happens after the scan.
func (s *SQLiteStore) ProductsForPage(ctx context.Context, pageID string) ([]framework.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace_id, name, description, price, currency, usp,
		 target_audience, tags, page_ids, active
		 FROM products WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()
	var out []framework.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		for _, id := range product.PageIDs {
			if id == pageID {
				out = append(out, *product)
				break
			}
		}
	}
	return out, rows.Err()
}

// SaveProduct upserts a product.
func (s *SQLiteStore) SaveProduct(ctx context.Context, product *framework.Product) error {
	tagsJSON, err := marshalJSON(product.Tags)
	if err != nil {
		return err
	}
	pageIDsJSON, err := marshalJSON(product.PageIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (id, workspace_id, name, description, price,
			currency, usp, target_audience, tags, page_ids, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workspace_id=excluded.workspace_id,
			name=excluded.name,
			description=excluded.description,
			price=excluded.price,
			currency=excluded.currency,
			usp=excluded.usp,
			target_audience=excluded.target_audience,
			tags=excluded.tags,
			page_ids=excluded.page_ids,
			active=excluded.active`,
		product.ID, product.WorkspaceID, product.Name, product.Description,
		product.Price, product.Currency, product.USP, product.TargetAudience,
		tagsJSON, pageIDsJSON, product.Active,
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// PastWinners returns recorded winners for the page, newest first.
func (s *SQLiteStore) PastWinners(ctx context.Context, pageID string, limit int) ([]framework.PastWinner, error) {
	query := `SELECT id, page_id, campaign_name, ad_content, metrics, factors, created_at
		FROM past_winners WHERE page_id = ? ORDER BY created_at DESC`
	args := []interface{}{pageID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query past winners: %w", err)
	}
	defer rows.Close()
	var out []framework.PastWinner
	for rows.Next() {
		var w framework.PastWinner
		var campaignName, contentJSON, metricsJSON, factors sql.NullString
		if err := rows.Scan(&w.ID, &w.PageID, &campaignName, &contentJSON,
			&metricsJSON, &factors, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan past winner: %w", err)
		}
		w.CampaignName = campaignName.String
		w.Factors = factors.String
		if err := unmarshalJSON(contentJSON, &w.AdContent); err != nil {
			return nil, fmt.Errorf("decode winner content: %w", err)
		}
		if err := unmarshalJSON(metricsJSON, &w.Metrics); err != nil {
			return nil, fmt.Errorf("decode winner metrics: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// SavePastWinner appends a winner record for the page.
func (s *SQLiteStore) SavePastWinner(ctx context.Context, winner *framework.PastWinner) error {
	if winner.ID == "" {
		winner.ID = uuid.NewString()
	}
	if winner.CreatedAt.IsZero() {
		winner.CreatedAt = time.Now().UTC()
	}
	contentJSON, err := marshalJSON(winner.AdContent)
	if err != nil {
		return err
	}
	metricsJSON, err := marshalJSON(winner.Metrics)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO past_winners (id, page_id, campaign_name, ad_content, metrics, factors, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		winner.ID, winner.PageID, winner.CampaignName, contentJSON,
		metricsJSON, winner.Factors, winner.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert past winner: %w", err)
	}
	return nil
}
