package models

import "github.com/noah-isme/student-portal/internal/store"

// Event is an upcoming campus event.
type Event struct {
	ID   string `doc:"-" json:"id"`
	Name string `doc:"name" json:"name"`
	Date string `doc:"date" json:"date"`
}

// DecodeEvent builds an Event from a store record.
func DecodeEvent(rec store.Record) (Event, error) {
	var e Event
	if err := decodeRecord(rec, &e); err != nil {
		return Event{}, err
	}
	e.ID = rec.ID
	return e, nil
}
