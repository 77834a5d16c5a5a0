package model

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/domain/types"
)

// Plan is the subscription record gating reminder volume.
// It is mutated by an external billing flow; the engine only reads it.
type Plan struct {
	Type                types.PlanType `json:"planType"`
	ActiveReminderLimit int            `json:"activeReminderLimit"`
}

// DefaultPlan returns the plan created on first run
func DefaultPlan() *Plan {
	return &Plan{
		Type:                types.PlanTypeFree,
		ActiveReminderLimit: types.DefaultFreeReminderLimit,
	}
}

// IsUnlimited reports whether the plan has no pending reminder cap
func (p *Plan) IsUnlimited() bool {
	return p.ActiveReminderLimit == types.UnlimitedReminders
}

// Admits reports whether one more pending reminder fits into the plan
func (p *Plan) Admits(pendingCount int) bool {
	if p.IsUnlimited() {
		return true
	}
	return pendingCount < p.ActiveReminderLimit
}

// Validate checks the plan record shape
func (p *Plan) Validate() error {
	if !p.Type.IsValid() {
		return goerr.New("invalid plan type", goerr.V("plan_type", p.Type))
	}
	if p.ActiveReminderLimit < 0 && !p.IsUnlimited() {
		return goerr.New("invalid active reminder limit", goerr.V("limit", p.ActiveReminderLimit))
	}
	return nil
}

// PlanStatus is the admission state reported to UI collaborators
type PlanStatus struct {
	PlanType            types.PlanType `json:"planType"`
	ActiveReminderLimit int            `json:"activeReminderLimit"`
	PendingCount        int            `json:"pendingCount"`
	CanAdmit            bool           `json:"canAdmit"`
}

// CountPending counts reminders that occupy a plan slot
func CountPending(reminders []*Reminder) int {
	n := 0
	for _, r := range reminders {
		if r.IsPending() {
			n++
		}
	}
	return n
}
