package models

import "github.com/noah-isme/student-portal/internal/store"

// Notification is a static notice shown on the notifications screen.
type Notification struct {
	ID        string `doc:"-" json:"id"`
	Message   string `doc:"message" json:"message"`
	Timestamp string `doc:"timestamp" json:"timestamp"`
}

// DecodeNotification builds a Notification from a store record.
func DecodeNotification(rec store.Record) (Notification, error) {
	var n Notification
	if err := decodeRecord(rec, &n); err != nil {
		return Notification{}, err
	}
	n.ID = rec.ID
	return n, nil
}
