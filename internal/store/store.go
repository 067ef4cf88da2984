package store

import (
	"context"
	"errors"

	"github.com/mj-member/mjmember/internal/models"
)

// ErrNotFound is returned by updates that target a missing row.
var ErrNotFound = errors.New("not found")

// DataStore defines the interface for persistent storage of members and messages.
// Both PostgresStore and SQLiteStore implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Member operations
	CreateMember(ctx context.Context, m *models.Member) (*models.Member, error)
	GetMemberByID(ctx context.Context, id int64) (*models.Member, error)

	// Message operations
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	QueryMessages(ctx context.Context, f MessageFilter) ([]models.Message, error)
	UpdateMessageStatus(ctx context.Context, id string, status models.Status) error
	AssignMessage(ctx context.Context, id string, memberID int64) error

	// Per-recipient read markers
	MarkRead(ctx context.Context, messageID string, memberID int64) error
	ReadMessageIDs(ctx context.Context, memberID int64, messageIDs []string) (map[string]bool, error)

	// Moderation dashboard
	MessageStats(ctx context.Context) (*MessageStats, error)
}
