package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mj-member/mjmember/internal/models"
)

// MessageFilter narrows a message query. Nil pointers and empty strings
// mean "no constraint".
type MessageFilter struct {
	PerPage int // <= 0 means unbounded
	Page    int // 1-based
	OrderBy string
	Order   string

	AssignedTo  *int64
	TargetType  models.TargetType
	TargetRef   *int64
	MemberID    *int64
	SenderEmail string
	Status      models.Status

	// ReaderID scopes Unread to one recipient's read markers.
	ReaderID int64
	Unread   *bool
}

var orderColumns = map[string]string{
	"created_at": "m.created_at",
	"status":     "m.status",
	"id":         "m.id",
}

const messageColumns = `m.id, m.sender_name, m.sender_email, m.member_id, m.target_type, m.target_ref,
	m.assigned_to, m.status, m.subject, m.body, m.created_at`

// buildMessageQuery renders f as a SELECT over messages. placeholder returns
// the driver's bind syntax for the n-th (1-based) argument.
func buildMessageQuery(f MessageFilter, placeholder func(n int) string) (string, []any) {
	var (
		where []string
		args  []any
	)
	bind := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}

	if f.AssignedTo != nil {
		where = append(where, "m.assigned_to = "+bind(*f.AssignedTo))
	}
	if f.TargetType != "" {
		where = append(where, "m.target_type = "+bind(string(f.TargetType)))
	}
	if f.TargetRef != nil {
		where = append(where, "m.target_ref = "+bind(*f.TargetRef))
	}
	if f.MemberID != nil {
		where = append(where, "m.member_id = "+bind(*f.MemberID))
	}
	if f.SenderEmail != "" {
		where = append(where, "lower(m.sender_email) = "+bind(strings.ToLower(f.SenderEmail)))
	}
	if f.Status != "" {
		where = append(where, "m.status = "+bind(string(f.Status)))
	}
	if f.Unread != nil && f.ReaderID > 0 {
		exists := "EXISTS"
		if *f.Unread {
			exists = "NOT EXISTS"
		}
		where = append(where, fmt.Sprintf(
			"%s (SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.member_id = %s)",
			exists, bind(f.ReaderID)))
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(messageColumns)
	sb.WriteString(" FROM messages m")
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}

	col, ok := orderColumns[f.OrderBy]
	if !ok {
		col = orderColumns["created_at"]
	}
	dir := "DESC"
	if strings.EqualFold(f.Order, "ASC") {
		dir = "ASC"
	}
	fmt.Fprintf(&sb, " ORDER BY %s %s, m.id %s", col, dir, dir)

	if f.PerPage > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		fmt.Fprintf(&sb, " LIMIT %s OFFSET %s", bind(f.PerPage), bind((page-1)*f.PerPage))
	}

	return sb.String(), args
}

// rowScanner is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (models.Message, error) {
	var (
		msg        models.Message
		targetType string
		status     string
		createdAt  any
	)
	err := row.Scan(
		&msg.ID,
		&msg.SenderName,
		&msg.SenderEmail,
		&msg.MemberID,
		&targetType,
		&msg.TargetRef,
		&msg.AssignedTo,
		&status,
		&msg.Subject,
		&msg.Body,
		&createdAt,
	)
	if err != nil {
		return msg, err
	}
	msg.TargetType = models.TargetType(targetType)
	msg.Status = models.Status(status)
	msg.CreatedAt = toTime(createdAt)
	return msg, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// toTime converts a driver value to a time. Missing or malformed values
// yield the zero time so they sort last.
func toTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		return parseTimestamp(t)
	case []byte:
		return parseTimestamp(string(t))
	case int64:
		return time.Unix(t, 0).UTC()
	}
	return time.Time{}
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// prepareMessage fills in the generated fields of a new message.
func prepareMessage(msg *models.Message) {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Status == "" {
		msg.Status = models.StatusNew
	}
}
