package model

import (
	"errors"
	"strings"
	"time"
)

var ErrMissingFields = errors.New("all fields are required: date, time, patientName, patientBirthdate")

// Appointment is a validated booking request. Start and End are absolute instants;
// the patient fields are opaque text copied into the calendar event.
type Appointment struct {
	PatientName      string
	PatientBirthdate string
	Start            time.Time
	End              time.Time
}

// BookingRequest is the raw submission as received from the website.
type BookingRequest struct {
	Date             string `json:"date"`
	Time             string `json:"time"`
	PatientName      string `json:"patientName"`
	PatientBirthdate string `json:"patientBirthdate"`
}

// Normalize trims every field and reports ErrMissingFields when any is empty.
func (r *BookingRequest) Normalize() error {
	r.Date = strings.TrimSpace(r.Date)
	r.Time = strings.TrimSpace(r.Time)
	r.PatientName = strings.TrimSpace(r.PatientName)
	r.PatientBirthdate = strings.TrimSpace(r.PatientBirthdate)
	if r.Date == "" || r.Time == "" || r.PatientName == "" || r.PatientBirthdate == "" {
		return ErrMissingFields
	}
	return nil
}
