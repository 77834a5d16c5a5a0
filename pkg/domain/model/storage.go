package model

import (
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
)

// StorageStatus reports how much of the durable store byte budget the
// reminder collection consumes.
type StorageStatus struct {
	BytesInUse  int64   `json:"bytesInUse"`
	QuotaBytes  int64   `json:"quotaBytes"`
	Utilization float64 `json:"utilization"`
	NearQuota   bool    `json:"nearQuota"`
}

// EstimateSize returns the serialized size of the collection in bytes
func EstimateSize(reminders []*Reminder) (int64, error) {
	if reminders == nil {
		reminders = []*Reminder{}
	}
	data, err := json.Marshal(reminders)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to serialize reminders")
	}
	return int64(len(data)), nil
}

// NewStorageStatus computes utilization against quota; nearQuota is set at
// or above warnRatio.
func NewStorageStatus(bytesInUse, quotaBytes int64, warnRatio float64) *StorageStatus {
	status := &StorageStatus{
		BytesInUse: bytesInUse,
		QuotaBytes: quotaBytes,
	}
	if quotaBytes > 0 {
		status.Utilization = float64(bytesInUse) / float64(quotaBytes)
		status.NearQuota = status.Utilization >= warnRatio
	}
	return status
}
