package chat

import "time"

// Assistant is the participant name used for model-generated turns.
const Assistant = "assistant"

// TimeLayout renders message times as "03:04 PM | Jan 02".
const TimeLayout = "03:04 PM | Jan 02"

// Record persists a single turn between a user and the assistant.
type Record struct {
	ID        int64  `json:"id"`
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// FromAssistant reports whether the record was produced by the assistant.
func (r Record) FromAssistant() bool {
	return r.Sender == Assistant
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}
