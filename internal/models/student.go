package models

import (
	"strings"

	"github.com/noah-isme/student-portal/internal/store"
)

// DefaultLanguage is shown whenever a profile carries no usable preference.
const DefaultLanguage = "English"

// SupportedLanguages is the profile language catalogue, in menu order.
var SupportedLanguages = []string{"English", "Spanish", "French", "German", "Mandarin", "Japanese", "Arabic"}

// IsSupportedLanguage reports whether lang is in the catalogue.
func IsSupportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// Student is the profile document of the session user.
type Student struct {
	ID                string `doc:"-" json:"id"`
	Name              string `doc:"name" json:"name"`
	Age               int    `doc:"age" json:"age" validate:"gte=0"`
	DOB               string `doc:"dob" json:"dob"`
	PreferredLanguage string `doc:"preferredLanguage" json:"preferredLanguage"`
}

// Student field names as stored.
const FieldPreferredLanguage = "preferredLanguage"

// NewStudent returns a student carrying the shape defaults.
func NewStudent() Student {
	return Student{PreferredLanguage: DefaultLanguage}
}

// DecodeStudent builds a Student from a store record.
func DecodeStudent(rec store.Record) (Student, error) {
	s := NewStudent()
	if err := decodeRecord(rec, &s); err != nil {
		return Student{}, err
	}
	s.ID = rec.ID
	return s, nil
}

// DisplayLanguage is the language the profile screen shows: the stored
// preference when it is not blank, English otherwise.
func (s Student) DisplayLanguage() string {
	if strings.TrimSpace(s.PreferredLanguage) == "" {
		return DefaultLanguage
	}
	return s.PreferredLanguage
}

// Profile is what the profile screen renders for a student.
type Profile struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Age               int    `json:"age"`
	DOB               string `json:"dob"`
	PreferredLanguage string `json:"preferredLanguage"`
	DisplayLanguage   string `json:"displayLanguage"`
}

// Profile projects the student onto the profile screen.
func (s Student) Profile() Profile {
	return Profile{
		ID:                s.ID,
		Name:              s.Name,
		Age:               s.Age,
		DOB:               s.DOB,
		PreferredLanguage: s.PreferredLanguage,
		DisplayLanguage:   s.DisplayLanguage(),
	}
}

// WithLanguage returns the profile with lang selected.
func (p Profile) WithLanguage(lang string) Profile {
	p.PreferredLanguage = lang
	p.DisplayLanguage = Student{PreferredLanguage: lang}.DisplayLanguage()
	return p
}

// DecodeProfile builds a Profile from a student record.
func DecodeProfile(rec store.Record) (Profile, error) {
	s, err := DecodeStudent(rec)
	if err != nil {
		return Profile{}, err
	}
	return s.Profile(), nil
}
