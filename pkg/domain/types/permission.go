package types

// PermissionLevel is the user's consent state for raising alerts
type PermissionLevel string

const (
	PermissionGranted PermissionLevel = "granted"
	PermissionDenied  PermissionLevel = "denied"
)

func (p PermissionLevel) String() string {
	return string(p)
}

// AlertPriority controls how insistently an alert is presented
type AlertPriority string

const (
	// AlertPriorityHigh alerts stay visible until the user dismisses them
	AlertPriorityHigh AlertPriority = "high"
	// AlertPriorityLow alerts are informational and may auto-expire
	AlertPriorityLow AlertPriority = "low"
)

func (p AlertPriority) String() string {
	return string(p)
}
