package models

import "github.com/noah-isme/student-portal/internal/store"

// Application is a submitted program application and its status.
type Application struct {
	ID     string `doc:"-" json:"id"`
	Name   string `doc:"name" json:"name"`
	Status string `doc:"status" json:"status"`
}

// DecodeApplication builds an Application from a store record.
func DecodeApplication(rec store.Record) (Application, error) {
	var a Application
	if err := decodeRecord(rec, &a); err != nil {
		return Application{}, err
	}
	a.ID = rec.ID
	return a, nil
}
