package types

import "fmt"

// PlanType represents the subscription tier of an installation
type PlanType string

const (
	PlanTypeFree PlanType = "free"
	PlanTypePaid PlanType = "paid"
)

// UnlimitedReminders is the activeReminderLimit sentinel for plans without a cap
const UnlimitedReminders = -1

// DefaultFreeReminderLimit is the number of pending reminders allowed on the free plan
const DefaultFreeReminderLimit = 5

// IsValid checks if the plan type is valid
func (p PlanType) IsValid() bool {
	switch p {
	case PlanTypeFree, PlanTypePaid:
		return true
	default:
		return false
	}
}

// DefaultLimit returns the active reminder limit a new plan of this type gets
func (p PlanType) DefaultLimit() int {
	if p == PlanTypePaid {
		return UnlimitedReminders
	}
	return DefaultFreeReminderLimit
}

func (p PlanType) String() string {
	return string(p)
}

// ParsePlanType parses a string into a PlanType
func ParsePlanType(s string) (PlanType, error) {
	p := PlanType(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid plan type: %s", s)
	}
	return p, nil
}
