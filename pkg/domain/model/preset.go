package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/domain/types"
)

const (
	tonightHour         = 20
	tomorrowMorningHour = 9
)

// ResolvePreset turns a quick-pick preset into an absolute time using the
// location of now (the host's local clock).
func ResolvePreset(preset types.TimePreset, now time.Time) (time.Time, error) {
	switch preset {
	case types.TimePresetInOneHour:
		return now.Add(time.Hour), nil

	case types.TimePresetTonight:
		tonight := atHour(now, tonightHour)
		if !tonight.After(now) {
			tonight = tonight.AddDate(0, 0, 1)
		}
		return tonight, nil

	case types.TimePresetTomorrowMorning:
		return atHour(now, tomorrowMorningHour).AddDate(0, 0, 1), nil

	default:
		return time.Time{}, goerr.New("unknown time preset", goerr.V("preset", preset))
	}
}

func atHour(t time.Time, hour int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, t.Location())
}
