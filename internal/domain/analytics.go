package domain

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// StatusDataType is the device_data type holding online/offline samples
const StatusDataType = "status"

// StatusAnalytics summarizes a series of status samples
type StatusAnalytics struct {
	CurrentStatus    DeviceStatus `json:"current_status"`
	UptimePercentage float64      `json:"uptime_percentage"`
	StatusChanges    int          `json:"status_changes"`
	LastUpdate       time.Time    `json:"last_update"`
	Samples          int          `json:"samples"`
}

// DeviceAnalytics is a status series, oldest first, with its summary.
// Analytics is nil when the series has no usable sample.
type DeviceAnalytics struct {
	StatusData []*Reading                 `json:"status_data"`
	Analytics  *StatusAnalytics           `json:"analytics,omitempty"`
	Devices    map[string]StatusAnalytics `json:"devices,omitempty"`
}

// StatusValue reads a status sample as 1 (online) or 0. Accepted payloads are
// numbers, booleans, device status names, numeric strings, and objects
// carrying one of those under "value" or "status".
func StatusValue(payload json.RawMessage) (float64, bool) {
	return statusValue(payload, true)
}

func statusValue(payload json.RawMessage, descend bool) (float64, bool) {
	var v interface{}
	if err := json.Unmarshal(payload, &v); err != nil {
		return 0, false
	}

	switch t := v.(type) {
	case float64:
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(t)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
		status := DeviceStatus(strings.ToUpper(s))
		if !status.IsValid() {
			return 0, false
		}
		if status == DeviceStatusOnline {
			return 1, true
		}
		return 0, true
	case map[string]interface{}:
		if !descend {
			return 0, false
		}
		for _, key := range []string{"value", "status"} {
			if inner, ok := t[key]; ok {
				raw, err := json.Marshal(inner)
				if err != nil {
					return 0, false
				}
				return statusValue(raw, false)
			}
		}
	}
	return 0, false
}

// ComputeStatusAnalytics summarizes readings in timestamp order. Samples whose
// payload is not a status value are skipped. The first sample opens a run and
// counts as a change, so StatusChanges is the number of runs.
func ComputeStatusAnalytics(readings []*Reading) (StatusAnalytics, bool) {
	ordered := make([]*Reading, 0, len(readings))
	values := make(map[*Reading]float64, len(readings))
	for _, r := range readings {
		if r == nil {
			continue
		}
		if v, ok := StatusValue(r.Payload); ok {
			ordered = append(ordered, r)
			values[r] = v
		}
	}
	if len(ordered) == 0 {
		return StatusAnalytics{}, false
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	var sum float64
	changes := 0
	for i, r := range ordered {
		v := values[r]
		sum += v
		if i == 0 || v != values[ordered[i-1]] {
			changes++
		}
	}

	last := ordered[len(ordered)-1]
	current := DeviceStatusOffline
	if values[last] == 1 {
		current = DeviceStatusOnline
	}

	return StatusAnalytics{
		CurrentStatus:    current,
		UptimePercentage: math.Round(sum/float64(len(ordered))*100*100) / 100,
		StatusChanges:    changes,
		LastUpdate:       last.Timestamp,
		Samples:          len(ordered),
	}, true
}
