package models

import "github.com/noah-isme/student-portal/internal/store"

// Course carries completion progress as a percentage.
type Course struct {
	ID       string `doc:"-" json:"id"`
	Name     string `doc:"name" json:"name"`
	Progress int    `doc:"progress" json:"progress" validate:"gte=0,lte=100"`
}

// DecodeCourse builds a Course from a store record.
func DecodeCourse(rec store.Record) (Course, error) {
	var c Course
	if err := decodeRecord(rec, &c); err != nil {
		return Course{}, err
	}
	c.ID = rec.ID
	return c, nil
}
