// Package inbox resolves which contact messages a member may see and
// assembles them into a single recency-ordered list.
package inbox

import (
	"fmt"

	"github.com/mj-member/mjmember/internal/models"
	"github.com/mj-member/mjmember/internal/store"
)

// TargetQuery describes one class of message a viewer is entitled to see.
// Ref 0 means "no reference". For TargetAll the reference is never
// constrained; for every other type it is matched exactly, so Ref 0 selects
// broadcasts stored without a reference.
type TargetQuery struct {
	Type models.TargetType
	Ref  int64
}

// Key returns the composite key used for de-duplication.
func (q TargetQuery) Key() string {
	return fmt.Sprintf("%s:%d", q.Type, q.Ref)
}

func (q TargetQuery) String() string {
	if q.Ref == 0 {
		return string(q.Type)
	}
	return fmt.Sprintf("%s(%d)", q.Type, q.Ref)
}

// Filter narrows base to the messages this target selects.
func (q TargetQuery) Filter(base store.MessageFilter) store.MessageFilter {
	f := base
	f.TargetType = q.Type
	f.TargetRef = nil
	if q.Type != models.TargetAll {
		ref := q.Ref
		f.TargetRef = &ref
	}
	return f
}

// Matches reports whether msg would be returned by this target's query.
func (q TargetQuery) Matches(msg *models.Message) bool {
	if msg.TargetType != q.Type {
		return false
	}
	return q.Type == models.TargetAll || msg.TargetRef == q.Ref
}

// targetSet accumulates unique target queries in insertion order.
type targetSet struct {
	seen    map[string]bool
	targets []TargetQuery
}

func (s *targetSet) add(t models.TargetType, ref int64) {
	q := TargetQuery{Type: t, Ref: ref}
	if s.seen[q.Key()] {
		return
	}
	s.seen[q.Key()] = true
	s.targets = append(s.targets, q)
}

// BuildRecipientTargetQueries returns the target queries identifying the
// messages addressed to a viewer. includeGlobal grants the organisation-wide
// broadcast regardless of role.
func BuildRecipientTargetQueries(viewerID int64, role string, includeGlobal bool) []TargetQuery {
	set := &targetSet{seen: make(map[string]bool)}

	facilitator := IsFacilitatorRole(role)
	coordinator := IsCoordinatorRole(role)

	if includeGlobal || facilitator {
		set.add(models.TargetAll, 0)
	}

	if viewerID <= 0 {
		return set.targets
	}

	set.add(models.TargetIndividual, viewerID)

	// Broadcasts are stored both with and without the recipient reference.
	if facilitator {
		set.add(models.TargetFacilitators, viewerID)
		set.add(models.TargetFacilitators, 0)
	}
	if coordinator {
		set.add(models.TargetCoordinators, viewerID)
		set.add(models.TargetCoordinators, 0)
	}

	return set.targets
}
