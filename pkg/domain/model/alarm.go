package model

import "strings"

// AlarmKeyPrefix namespaces reminder wake-ups so other wake-up kinds can
// share the timer facility.
const AlarmKeyPrefix = "reminder-"

// AlarmKey builds the schedule entry name for a reminder
func AlarmKey(id ReminderID) string {
	return AlarmKeyPrefix + string(id)
}

// ParseAlarmKey extracts the reminder ID from a schedule entry name.
// It returns false for keys outside the reminder namespace.
func ParseAlarmKey(key string) (ReminderID, bool) {
	if !strings.HasPrefix(key, AlarmKeyPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(key, AlarmKeyPrefix)
	if id == "" {
		return "", false
	}
	return ReminderID(id), true
}
