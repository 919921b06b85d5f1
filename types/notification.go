package types

// ChangeKind names the dimension a routine change descriptor reports.
type ChangeKind string

const (
	ChangeTemperature ChangeKind = "temperature"
	ChangeCategory    ChangeKind = "category"
	ChangeWind        ChangeKind = "wind"
)

// ChangeDescriptor is one human-readable unit of routine weather change.
// Descriptors are ordered most significant first (temperature before
// category before wind, matching detection order).
type ChangeDescriptor struct {
	Kind ChangeKind `json:"kind"`
	Text string     `json:"text"`
}

// AlertLevel is the hazard tier of an emergency alert.
type AlertLevel string

const (
	AlertLevelRed    AlertLevel = "red"    // КРАСНЫЙ
	AlertLevelOrange AlertLevel = "orange" // ОРАНЖЕВЫЙ
	AlertLevelYellow AlertLevel = "yellow" // ЖЁЛТЫЙ
)

// AlertType names the hazard an emergency alert reports.
type AlertType string

const (
	AlertTypeWind         AlertType = "wind"
	AlertTypeRain         AlertType = "rain"
	AlertTypeSnow         AlertType = "snow"
	AlertTypeThunderstorm AlertType = "thunderstorm"
	AlertTypeFog          AlertType = "fog"
)

// AlertPriority is the delivery priority tier of an alert.
type AlertPriority string

const (
	AlertPriorityHigh   AlertPriority = "high"
	AlertPriorityMedium AlertPriority = "medium"
)

// EmergencyAlert is one hazard detected on an observation. Multiple alerts
// may co-occur for a single observation; all are delivered.
type EmergencyAlert struct {
	Level    AlertLevel    `json:"level"`
	Type     AlertType     `json:"type"`
	Title    string        `json:"title"`
	Body     string        `json:"body"`
	Priority AlertPriority `json:"priority"`
}

// PushMessage is one outbound push notification. Data values are always
// strings: push-transport payload fields are string-typed by convention.
type PushMessage struct {
	To        string            `json:"to"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Sound     string            `json:"sound,omitempty"`
	Priority  string            `json:"priority,omitempty"`
	ChannelID string            `json:"channelId,omitempty"`
}

// DeliveryResult is the per-message outcome reported by the push transport.
type DeliveryResult struct {
	Token   string `json:"token"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SkipReason explains why a routine notification was suppressed for a token.
type SkipReason string

const (
	SkipQuietHours SkipReason = "quiet_hours"
	SkipRateLimit  SkipReason = "rate_limit"
)

// SkippedDelivery records one suppressed routine send.
type SkippedDelivery struct {
	Token  string     `json:"token"`
	Reason SkipReason `json:"reason"`
}

// DispatchResult aggregates what happened to one dispatch request.
// A delivery failure never aborts the remaining messages, so all three
// buckets can be populated at once.
type DispatchResult struct {
	Sent    []string          `json:"sent"`
	Skipped []SkippedDelivery `json:"skipped,omitempty"`
	Failed  []DeliveryResult  `json:"failed,omitempty"`
}

// Merge folds another result into this one.
func (r *DispatchResult) Merge(other *DispatchResult) {
	if other == nil {
		return
	}
	r.Sent = append(r.Sent, other.Sent...)
	r.Skipped = append(r.Skipped, other.Skipped...)
	r.Failed = append(r.Failed, other.Failed...)
}
