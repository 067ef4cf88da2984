package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mj-member/mjmember/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/mjmember.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/mjmember.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS members (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		can_moderate INTEGER NOT NULL DEFAULT 0,
		api_key_hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_name TEXT NOT NULL DEFAULT '',
		sender_email TEXT NOT NULL DEFAULT '',
		member_id INTEGER NOT NULL DEFAULT 0,
		target_type TEXT NOT NULL,
		target_ref INTEGER NOT NULL DEFAULT 0,
		assigned_to INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'nouveau',
		subject TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS message_reads (
		message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		member_id INTEGER NOT NULL,
		read_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (message_id, member_id)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_target ON messages(target_type, target_ref);
	CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_assigned ON messages(assigned_to);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateMember inserts a member and returns the stored record.
func (s *SQLiteStore) CreateMember(ctx context.Context, m *models.Member) (*models.Member, error) {
	canModerate := 0
	if m.CanModerate {
		canModerate = 1
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO members (name, email, role, can_moderate, api_key_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.Name, m.Email, m.Role, canModerate, m.APIKeyHash, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetMemberByID(ctx, id)
}

// GetMemberByID retrieves a member by ID.
func (s *SQLiteStore) GetMemberByID(ctx context.Context, id int64) (*models.Member, error) {
	member := &models.Member{}
	var canModerate int
	var createdAt any
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, can_moderate, api_key_hash, created_at
		FROM members WHERE id = ?
	`, id).Scan(
		&member.ID,
		&member.Name,
		&member.Email,
		&member.Role,
		&canModerate,
		&member.APIKeyHash,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	member.CanModerate = canModerate == 1
	member.CreatedAt = toTime(createdAt)
	return member, nil
}

// CreateMessage stores a new message, generating its ID and timestamp when unset.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	prepareMessage(msg)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_name, sender_email, member_id, target_type, target_ref,
			assigned_to, status, subject, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.SenderName, msg.SenderEmail, msg.MemberID, string(msg.TargetType), msg.TargetRef,
		msg.AssignedTo, string(msg.Status), msg.Subject, msg.Body, msg.CreatedAt.UTC())
	return err
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+messageColumns+" FROM messages m WHERE m.id = ?", id)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// QueryMessages returns the messages matching f.
func (s *SQLiteStore) QueryMessages(ctx context.Context, f MessageFilter) ([]models.Message, error) {
	query, args := buildMessageQuery(f, func(int) string { return "?" })

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// UpdateMessageStatus changes the lifecycle stage of a message.
func (s *SQLiteStore) UpdateMessageStatus(ctx context.Context, id string, status models.Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// AssignMessage sets the member responsible for a message (0 clears it).
func (s *SQLiteStore) AssignMessage(ctx context.Context, id string, memberID int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET assigned_to = ? WHERE id = ?`, memberID, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// MarkRead records that memberID has read the message. Repeated calls are no-ops.
func (s *SQLiteStore) MarkRead(ctx context.Context, messageID string, memberID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO message_reads (message_id, member_id, read_at)
		VALUES (?, ?, ?)
	`, messageID, memberID, time.Now().UTC())
	return err
}

// ReadMessageIDs returns which of messageIDs memberID has read.
func (s *SQLiteStore) ReadMessageIDs(ctx context.Context, memberID int64, messageIDs []string) (map[string]bool, error) {
	read := make(map[string]bool, len(messageIDs))
	if len(messageIDs) == 0 {
		return read, nil
	}

	args := make([]any, 0, len(messageIDs)+1)
	args = append(args, memberID)
	for _, id := range messageIDs {
		args = append(args, id)
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(messageIDs)), ",")

	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id FROM message_reads WHERE member_id = ? AND message_id IN (`+marks+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		read[id] = true
	}
	return read, rows.Err()
}

// MessageStats counts members and messages.
func (s *SQLiteStore) MessageStats(ctx context.Context) (*MessageStats, error) {
	var members int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members`).Scan(&members); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, messageStatsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectStats(rows, members)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
