// Package api defines the JSON bodies of the v1 HTTP API.
package api

// ReconcileRequest is the body of POST /api/reconcile. At least one source
// must be given.
type ReconcileRequest struct {
	// CourseID selects the Canvas course whose discussion authors join the
	// participant list.
	CourseID string `json:"course_id,omitempty" validate:"omitempty,courseid"`
	// RegistrationCSV is the registration form export as CSV text.
	RegistrationCSV string `json:"registration_csv,omitempty"`
	// Sessions maps a session key ("session1", "Week 2") to the CSV text of
	// its Zoom participant export.
	Sessions map[string]string `json:"sessions,omitempty" validate:"omitempty,dive,keys,required,max=128,endkeys,required"`
	// UseSheet reads registrations from the configured Google Sheet when no
	// RegistrationCSV is given.
	UseSheet bool `json:"use_sheet,omitempty"`
	// Refresh bypasses cached Canvas data.
	Refresh bool `json:"refresh,omitempty"`
}

// CacheInvalidated is the response of DELETE /api/courses/{courseID}/cache.
type CacheInvalidated struct {
	CourseID string `json:"course_id"`
	Removed  int    `json:"removed"`
}
