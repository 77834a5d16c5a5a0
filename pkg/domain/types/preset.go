package types

import "fmt"

// TimePreset names a quick-pick scheduling choice offered by time pickers
type TimePreset string

const (
	TimePresetInOneHour       TimePreset = "in_1_hour"
	TimePresetTonight         TimePreset = "tonight"
	TimePresetTomorrowMorning TimePreset = "tomorrow_morning"
)

// AllTimePresets returns all valid presets
func AllTimePresets() []TimePreset {
	return []TimePreset{
		TimePresetInOneHour,
		TimePresetTonight,
		TimePresetTomorrowMorning,
	}
}

// IsValid checks if the preset is known
func (p TimePreset) IsValid() bool {
	switch p {
	case TimePresetInOneHour, TimePresetTonight, TimePresetTomorrowMorning:
		return true
	default:
		return false
	}
}

// ParseTimePreset parses a string into a TimePreset
func ParseTimePreset(s string) (TimePreset, error) {
	p := TimePreset(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid time preset: %s", s)
	}
	return p, nil
}
