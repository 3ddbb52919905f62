package domain

import "time"

// Donation is one key/payload event sent to the donation sink.
type Donation struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Key        string    `json:"key"`
	Payload    string    `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
}
