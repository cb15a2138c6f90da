package domain

// Participant is the canonical reconciled identity merging Canvas, registration
// and session-attendance records about one person.
type Participant struct {
	ID                string                      `json:"id" validate:"required"`
	Origin            ParticipantOrigin           `json:"origin" validate:"required,oneof=canvas registration session"`
	CanvasDisplayName string                      `json:"canvas_display_name,omitempty"`
	CanvasUserName    string                      `json:"canvas_user_name,omitempty"`
	CanvasEmail       string                      `json:"canvas_email,omitempty"`
	CanvasPostCount   int                         `json:"canvas_post_count"`
	RegistrationData  *RegistrationData           `json:"registration_data,omitempty"`
	ZoomSessions      map[string]*SessionRecord   `json:"zoom_sessions"`
	AIAttendance      map[string]AttendanceStatus `json:"ai_attendance"`
	Discrepancies     []Discrepancy               `json:"discrepancies"`
}

// ParticipantOrigin records which source first produced a participant.
type ParticipantOrigin string

const (
	OriginCanvas       ParticipantOrigin = "canvas"
	OriginRegistration ParticipantOrigin = "registration"
	OriginSession      ParticipantOrigin = "session"
)

// NewParticipant returns a participant with its maps allocated.
func NewParticipant(id string, origin ParticipantOrigin) *Participant {
	return &Participant{
		ID:            id,
		Origin:        origin,
		ZoomSessions:  make(map[string]*SessionRecord),
		AIAttendance:  make(map[string]AttendanceStatus),
		Discrepancies: []Discrepancy{},
	}
}

// DisplayName returns the best available human readable name.
func (p *Participant) DisplayName() string {
	switch {
	case p.CanvasDisplayName != "":
		return p.CanvasDisplayName
	case p.CanvasUserName != "":
		return p.CanvasUserName
	case p.RegistrationData != nil && p.RegistrationData.Name != "":
		return p.RegistrationData.Name
	}
	for _, key := range SortedSessionKeys(p.ZoomSessions) {
		if rec := p.ZoomSessions[key]; rec != nil && rec.Name != "" {
			return rec.Name
		}
	}
	return p.ID
}

// Email returns the first known email address.
func (p *Participant) Email() string {
	if p.CanvasEmail != "" {
		return p.CanvasEmail
	}
	if p.RegistrationData != nil && p.RegistrationData.Email != "" {
		return p.RegistrationData.Email
	}
	for _, key := range SortedSessionKeys(p.ZoomSessions) {
		if rec := p.ZoomSessions[key]; rec != nil && rec.Email != "" {
			return rec.Email
		}
	}
	return ""
}

// RegistrationData is the self-reported registration row attached to a participant.
type RegistrationData struct {
	Name   string            `json:"name"`
	Email  string            `json:"email"`
	Fields map[string]string `json:"fields,omitempty"`
}

// SessionRecord is the observed attendance of one participant in one session.
type SessionRecord struct {
	Name            string `json:"name"`
	Email           string `json:"email,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	Guest           bool   `json:"guest"`
}

// AttendanceStatus is the self-reported attendance for a session.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceUnknown AttendanceStatus = "unknown"
)

// Discrepancy is a detected mismatch between self-reported and observed attendance.
type Discrepancy struct {
	Type     DiscrepancyType `json:"type"`
	Session  string          `json:"session"`
	Message  string          `json:"message"`
	Severity Severity        `json:"severity"`
}

// DiscrepancyType classifies a discrepancy.
type DiscrepancyType string

const (
	DiscrepancyFalseAbsent   DiscrepancyType = "false_absent"
	DiscrepancyFalsePresent  DiscrepancyType = "false_present"
	DiscrepancyShortDuration DiscrepancyType = "short_duration"
)

// Severity ranks discrepancies.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)
