package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mj-member/mjmember/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the schema if it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS members (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		can_moderate BOOLEAN NOT NULL DEFAULT FALSE,
		api_key_hash TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_name TEXT NOT NULL DEFAULT '',
		sender_email TEXT NOT NULL DEFAULT '',
		member_id BIGINT NOT NULL DEFAULT 0,
		target_type TEXT NOT NULL,
		target_ref BIGINT NOT NULL DEFAULT 0,
		assigned_to BIGINT NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'nouveau',
		subject TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS message_reads (
		message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		member_id BIGINT NOT NULL,
		read_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (message_id, member_id)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_target ON messages(target_type, target_ref);
	CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_assigned ON messages(assigned_to);
	`)
	if err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateMember inserts a member and returns the stored record.
func (s *PostgresStore) CreateMember(ctx context.Context, m *models.Member) (*models.Member, error) {
	member := &models.Member{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO members (name, email, role, can_moderate, api_key_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, email, role, can_moderate, api_key_hash, created_at
	`, m.Name, m.Email, m.Role, m.CanModerate, m.APIKeyHash).Scan(
		&member.ID,
		&member.Name,
		&member.Email,
		&member.Role,
		&member.CanModerate,
		&member.APIKeyHash,
		&member.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return member, nil
}

// GetMemberByID retrieves a member by ID.
func (s *PostgresStore) GetMemberByID(ctx context.Context, id int64) (*models.Member, error) {
	member := &models.Member{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, role, can_moderate, api_key_hash, created_at
		FROM members WHERE id = $1
	`, id).Scan(
		&member.ID,
		&member.Name,
		&member.Email,
		&member.Role,
		&member.CanModerate,
		&member.APIKeyHash,
		&member.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return member, nil
}

// CreateMessage stores a new message, generating its ID and timestamp when unset.
func (s *PostgresStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	prepareMessage(msg)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, sender_name, sender_email, member_id, target_type, target_ref,
			assigned_to, status, subject, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, msg.ID, msg.SenderName, msg.SenderEmail, msg.MemberID, string(msg.TargetType), msg.TargetRef,
		msg.AssignedTo, string(msg.Status), msg.Subject, msg.Body, msg.CreatedAt)
	return err
}

// GetMessage retrieves a message by ID.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+messageColumns+" FROM messages m WHERE m.id = $1", id)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// QueryMessages returns the messages matching f.
func (s *PostgresStore) QueryMessages(ctx context.Context, f MessageFilter) ([]models.Message, error) {
	query, args := buildMessageQuery(f, func(n int) string { return fmt.Sprintf("$%d", n) })

	rows, err := s.pool.Query(ctx, query, args...)
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
func (s *PostgresStore) UpdateMessageStatus(ctx context.Context, id string, status models.Status) error {
	tag, err := s.pool.Exec(ctx, `UPDATE messages SET status = $1 WHERE id = $2`, string(status), id)
	return affected(tag, err)
}

// AssignMessage sets the member responsible for a message (0 clears it).
func (s *PostgresStore) AssignMessage(ctx context.Context, id string, memberID int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE messages SET assigned_to = $1 WHERE id = $2`, memberID, id)
	return affected(tag, err)
}

// MarkRead records that memberID has read the message. Repeated calls are no-ops.
func (s *PostgresStore) MarkRead(ctx context.Context, messageID string, memberID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO message_reads (message_id, member_id)
		VALUES ($1, $2)
		ON CONFLICT (message_id, member_id) DO NOTHING
	`, messageID, memberID)
	return err
}

// ReadMessageIDs returns which of messageIDs memberID has read.
func (s *PostgresStore) ReadMessageIDs(ctx context.Context, memberID int64, messageIDs []string) (map[string]bool, error) {
	read := make(map[string]bool, len(messageIDs))
	if len(messageIDs) == 0 {
		return read, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT message_id FROM message_reads
		WHERE member_id = $1 AND message_id = ANY($2)
	`, memberID, messageIDs)
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
func (s *PostgresStore) MessageStats(ctx context.Context) (*MessageStats, error) {
	var members int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM members`).Scan(&members); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, messageStatsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectStats(rows, members)
}

func affected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
