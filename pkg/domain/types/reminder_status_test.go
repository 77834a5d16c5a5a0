package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/followup/pkg/domain/types"
)

func TestReminderStatus_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		status types.ReminderStatus
		want   bool
	}{
		{name: "pending", status: types.ReminderStatusPending, want: true},
		{name: "completed", status: types.ReminderStatusCompleted, want: true},
		{name: "cancelled is not a status", status: types.ReminderStatus("cancelled"), want: false},
		{name: "overdue is derived, not persisted", status: types.ReminderStatus("overdue"), want: false},
		{name: "empty", status: types.ReminderStatus(""), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, tt.status.IsValid()).Equal(tt.want)
		})
	}
}

func TestParseReminderStatus(t *testing.T) {
	s, err := types.ParseReminderStatus("completed")
	gt.NoError(t, err).Required()
	gt.Value(t, s).Equal(types.ReminderStatusCompleted)

	_, err = types.ParseReminderStatus("done")
	gt.Value(t, err).NotNil()
}

func TestParsePlanType(t *testing.T) {
	p, err := types.ParsePlanType("paid")
	gt.NoError(t, err).Required()
	gt.Value(t, p).Equal(types.PlanTypePaid)

	_, err = types.ParsePlanType("enterprise")
	gt.Value(t, err).NotNil()
}

func TestPlanType_DefaultLimit(t *testing.T) {
	gt.Value(t, types.PlanTypeFree.DefaultLimit()).Equal(types.DefaultFreeReminderLimit)
	gt.Value(t, types.PlanTypePaid.DefaultLimit()).Equal(types.UnlimitedReminders)
}

func TestParseTimePreset(t *testing.T) {
	for _, p := range types.AllTimePresets() {
		parsed, err := types.ParseTimePreset(string(p))
		gt.NoError(t, err).Required()
		gt.Value(t, parsed).Equal(p)
	}

	_, err := types.ParseTimePreset("next_week")
	gt.Value(t, err).NotNil()
}
