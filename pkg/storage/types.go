package storage

import "time"

// Check is one latest-version lookup against the npm registry.
type Check struct {
	ID        int64     `json:"id"`
	CheckedAt time.Time `json:"checked_at"`

	// Package is the manifest name the check ran for.
	Package        string `json:"package"`
	CurrentVersion string `json:"current_version,omitempty"`
	LatestVersion  string `json:"latest_version"`
}

// Release status values.
const (
	StatusUpToDate = "up-to-date"
	StatusReleased = "released"
	StatusFailed   = "failed"
)

// Release records one run of the release automation.
type Release struct {
	ID         int64     `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Version string `json:"version,omitempty"`
	Status  string `json:"status"` // up-to-date | released | failed
	Message string `json:"message,omitempty"`
}
