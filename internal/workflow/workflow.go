// Package workflow is the single source of truth for which IPC status
// changes are legal, who may make them and what they must supply.
package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/procurement-ipc/internal/model"
)

var (
	ErrIllegalTransition  = errors.New("illegal transition")
	ErrMissingReviewNotes = errors.New("review notes are required")
	ErrRoleNotPermitted   = errors.New("role not permitted for this transition")
)

// TransitionError carries the attempted pair. It matches ErrIllegalTransition.
type TransitionError struct {
	From model.IPCStatus
	To   model.IPCStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrIllegalTransition, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

type Rule struct {
	From          model.IPCStatus
	To            model.IPCStatus
	Roles         []model.Role
	NotesRequired bool
}

func (r Rule) Allows(role model.Role) bool {
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

var (
	procurement = model.RoleProcurementReviewer
	technical   = model.RoleTechnicalReviewer
	finance     = model.RoleFinanceReviewer
	treasury    = model.RoleTreasury
)

var transitionTable = []Rule{
	{From: model.IPCStatusSubmitted, To: model.IPCStatusProcurementReview, Roles: []model.Role{procurement}},
	{From: model.IPCStatusSubmitted, To: model.IPCStatusRejected, Roles: []model.Role{procurement}, NotesRequired: true},
	{From: model.IPCStatusProcurementReview, To: model.IPCStatusTechnicalApproved, Roles: []model.Role{technical}},
	{From: model.IPCStatusProcurementReview, To: model.IPCStatusRejected, Roles: []model.Role{technical}, NotesRequired: true},
	{From: model.IPCStatusTechnicalApproved, To: model.IPCStatusFinanceReview, Roles: []model.Role{procurement, technical}},
	{From: model.IPCStatusTechnicalApproved, To: model.IPCStatusProcurementReview, Roles: []model.Role{procurement, technical, finance}},
	{From: model.IPCStatusFinanceReview, To: model.IPCStatusApproved, Roles: []model.Role{finance}},
	{From: model.IPCStatusFinanceReview, To: model.IPCStatusProcurementReview, Roles: []model.Role{finance}, NotesRequired: true},
	{From: model.IPCStatusFinanceReview, To: model.IPCStatusRejected, Roles: []model.Role{finance}, NotesRequired: true},
	{From: model.IPCStatusApproved, To: model.IPCStatusPaid, Roles: []model.Role{finance, treasury}},
}

// Rules returns a copy of the transition table.
func Rules() []Rule {
	rules := make([]Rule, len(transitionTable))
	for i, rule := range transitionTable {
		rule.Roles = append([]model.Role(nil), rule.Roles...)
		rules[i] = rule
	}
	return rules
}

func Lookup(from, to model.IPCStatus) (Rule, bool) {
	for _, rule := range transitionTable {
		if rule.From == from && rule.To == to {
			return rule, true
		}
	}
	return Rule{}, false
}

// AvailableTransitions lists the targets role may move an IPC in status from to.
func AvailableTransitions(from model.IPCStatus, role model.Role) []model.IPCStatus {
	var targets []model.IPCStatus
	for _, rule := range transitionTable {
		if rule.From == from && rule.Allows(role) {
			targets = append(targets, rule.To)
		}
	}
	return targets
}

// Validate checks the table, then the actor's role, then the notes.
func Validate(from, to model.IPCStatus, actor model.Principal, notes string) (Rule, error) {
	rule, ok := Lookup(from, to)
	if !ok {
		return Rule{}, &TransitionError{From: from, To: to}
	}
	if !rule.Allows(actor.Role) {
		return Rule{}, fmt.Errorf("%w: %s cannot move %s -> %s", ErrRoleNotPermitted, actor.Role, from, to)
	}
	if rule.NotesRequired && strings.TrimSpace(notes) == "" {
		return Rule{}, fmt.Errorf("%w: %s -> %s", ErrMissingReviewNotes, from, to)
	}
	return rule, nil
}

// Apply performs a validated transition on ipc and returns the timeline
// entry it appended.
func Apply(ipc *model.IPC, to model.IPCStatus, actor model.Principal, notes string, now time.Time) (model.TimelineEntry, error) {
	if _, err := Validate(ipc.Status, to, actor, notes); err != nil {
		return model.TimelineEntry{}, err
	}

	entry := newEntry(ipc, to, actor, notes, now)
	ipc.Status = to
	switch to {
	case model.IPCStatusApproved:
		at := entry.Timestamp
		ipc.ApprovedAt = &at
	case model.IPCStatusPaid:
		at := entry.Timestamp
		ipc.PaidAt = &at
	}
	ipc.Version++
	ipc.UpdatedAt = entry.Timestamp
	ipc.Timeline = append(ipc.Timeline, entry)
	return entry, nil
}

// Open records the initial SUBMITTED entry of a freshly raised IPC.
func Open(ipc *model.IPC, actor model.Principal, now time.Time) model.TimelineEntry {
	ipc.Status = model.IPCStatusSubmitted
	entry := newEntry(ipc, model.IPCStatusSubmitted, actor, "", now)
	ipc.Timeline = append(ipc.Timeline, entry)
	return entry
}

func newEntry(ipc *model.IPC, status model.IPCStatus, actor model.Principal, notes string, now time.Time) model.TimelineEntry {
	timestamp := now.UTC()
	seq := 1
	if n := len(ipc.Timeline); n > 0 {
		last := ipc.Timeline[n-1]
		// keep the timeline ordered even if the clock steps backwards
		if last.Timestamp.After(timestamp) {
			timestamp = last.Timestamp
		}
		seq = last.Seq + 1
	}

	entry := model.TimelineEntry{
		ID:        uuid.New(),
		IPCID:     ipc.ID,
		Seq:       seq,
		Status:    status,
		ActorID:   actor.UserID,
		ActorName: actor.Name,
		ActorRole: actor.Role,
		Timestamp: timestamp,
	}
	if trimmed := strings.TrimSpace(notes); trimmed != "" {
		entry.Notes = &trimmed
	}
	return entry
}
