package reconcile

import (
	"fmt"

	"rosterlink/pkg/contracts/domain"
)

// DefaultShortSessionMinutes is the attendance below which a session is flagged short.
const DefaultShortSessionMinutes = 30

// Analyze replaces the discrepancies of every participant with those found
// across sessions. A participant and session pair may yield several.
func Analyze(participants []*domain.Participant, sessions []string, shortSessionMinutes int) {
	if shortSessionMinutes <= 0 {
		shortSessionMinutes = DefaultShortSessionMinutes
	}
	for _, p := range participants {
		p.Discrepancies = []domain.Discrepancy{}
		for _, s := range sessions {
			p.Discrepancies = append(p.Discrepancies, sessionDiscrepancies(p, s, shortSessionMinutes)...)
		}
	}
}

func sessionDiscrepancies(p *domain.Participant, session string, shortMinutes int) []domain.Discrepancy {
	var out []domain.Discrepancy
	status := p.AIAttendance[session]
	rec := p.ZoomSessions[session]

	duration := 0
	if rec != nil {
		duration = rec.DurationMinutes
	}

	if status == domain.AttendanceAbsent && duration > 0 {
		out = append(out, domain.Discrepancy{
			Type:     domain.DiscrepancyFalseAbsent,
			Session:  session,
			Message:  fmt.Sprintf("reported absent but attended %d minutes", duration),
			Severity: domain.SeverityHigh,
		})
	}
	if status == domain.AttendancePresent && duration == 0 {
		msg := "reported present but has no attendance record"
		if rec != nil {
			msg = "reported present but attended 0 minutes"
		}
		out = append(out, domain.Discrepancy{
			Type:     domain.DiscrepancyFalsePresent,
			Session:  session,
			Message:  msg,
			Severity: domain.SeverityMedium,
		})
	}
	if rec != nil && duration < shortMinutes {
		out = append(out, domain.Discrepancy{
			Type:     domain.DiscrepancyShortDuration,
			Session:  session,
			Message:  fmt.Sprintf("attended %d minutes, under %d", duration, shortMinutes),
			Severity: domain.SeverityLow,
		})
	}
	return out
}
