package models

import "time"

// TargetType classifies who a message is addressed to.
type TargetType string

const (
	// TargetAll addresses the whole organisation.
	TargetAll TargetType = "all"

	// TargetFacilitators addresses every facilitator ("animateur").
	TargetFacilitators TargetType = "animateurs"

	// TargetCoordinators addresses every coordinator ("coordinateur").
	TargetCoordinators TargetType = "coordinateurs"

	// TargetIndividual addresses one member, identified by the target reference.
	TargetIndividual TargetType = "individual"
)

var validTargetTypes = map[TargetType]bool{
	TargetAll:          true,
	TargetFacilitators: true,
	TargetCoordinators: true,
	TargetIndividual:   true,
}

// Valid reports whether t is a known target type.
func (t TargetType) Valid() bool {
	return validTargetTypes[t]
}

// IsBroadcast returns true for targets addressed to more than one member.
func (t TargetType) IsBroadcast() bool {
	return t == TargetAll || t == TargetFacilitators || t == TargetCoordinators
}

// Status is the lifecycle stage of a message.
type Status string

const (
	StatusNew        Status = "nouveau"
	StatusInProgress Status = "en_cours"
	StatusResolved   Status = "resolu"
	StatusArchived   Status = "archive"
)

var validStatuses = map[Status]bool{
	StatusNew:        true,
	StatusInProgress: true,
	StatusResolved:   true,
	StatusArchived:   true,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return validStatuses[s]
}

// Message is a contact message submitted through the site.
type Message struct {
	ID          string     `json:"id"` // ULID
	SenderName  string     `json:"sender_name,omitempty"`
	SenderEmail string     `json:"sender_email,omitempty"`
	MemberID    int64      `json:"member_id,omitempty"` // 0 for anonymous senders
	TargetType  TargetType `json:"target_type"`
	TargetRef   int64      `json:"target_ref,omitempty"`
	AssignedTo  int64      `json:"assigned_to,omitempty"`
	Status      Status     `json:"status"`
	Subject     string     `json:"subject,omitempty"`
	Body        string     `json:"body"`
	CreatedAt   time.Time  `json:"created_at"`
}
