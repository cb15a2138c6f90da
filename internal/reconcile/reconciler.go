// Package reconcile merges LMS users, registration rows and per-session
// attendance exports into one Participant per person and flags attendance
// discrepancies.
//
// Reconciliation is synchronous and deterministic: the same input always
// yields the same participants in the same order. Bad input never fails a
// run. Invalid registration rows are filtered, unresolvable records become
// new participants, and both are counted in the run's ProcessingNotes.
package reconcile

import (
	"fmt"
	"log/slog"
	"strings"

	"rosterlink/internal/identity"
	"rosterlink/internal/ingest"
	"rosterlink/internal/names"
	"rosterlink/pkg/contracts/domain"
)

// DefaultMaxNameLength is the longest registration name accepted.
const DefaultMaxNameLength = 100

// Options tunes a Reconciler. Zero values select the defaults.
type Options struct {
	Threshold           float64
	ShortSessionMinutes int
	MaxNameLength       int
	Logger              *slog.Logger
}

// Reconciler builds participants from the three sources.
type Reconciler struct {
	threshold    float64
	shortMinutes int
	rows         *rowValidator
	logger       *slog.Logger
}

// Result is the outcome of one run.
type Result struct {
	Participants []*domain.Participant
	Sessions     []string
	Notes        domain.ProcessingNotes
}

// New creates a Reconciler.
func New(opts Options) *Reconciler {
	if opts.Threshold <= 0 {
		opts.Threshold = identity.DefaultThreshold
	}
	if opts.ShortSessionMinutes <= 0 {
		opts.ShortSessionMinutes = DefaultShortSessionMinutes
	}
	if opts.MaxNameLength <= 0 {
		opts.MaxNameLength = DefaultMaxNameLength
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		threshold:    opts.Threshold,
		shortMinutes: opts.ShortSessionMinutes,
		rows:         newRowValidator(opts.MaxNameLength),
		logger:       logger.With(slog.String("component", "reconciler")),
	}
}

// run holds the state of one Reconcile call.
type run struct {
	participants []*domain.Participant
	identities   []identity.Identity
	ids          map[string]bool
	notes        domain.ProcessingNotes
}

// Reconcile merges users, registrations and attendance rows keyed by session.
func (r *Reconciler) Reconcile(users []domain.CanvasUser, registrations []ingest.RegistrationRow, sessions map[string][]ingest.AttendanceRow) Result {
	st := &run{ids: make(map[string]bool)}

	r.seedCanvas(st, users)
	sessionSet := make(map[string]bool)
	for _, row := range registrations {
		r.addRegistration(st, row)
		for key := range row.Attendance {
			sessionSet[key] = true
		}
	}

	sessionKeys := domain.SortedSessionKeys(sessions)
	var sessionOnly []*domain.Participant
	for _, key := range sessionKeys {
		sessionSet[key] = true
		for _, row := range sessions[key] {
			if p := r.addAttendance(st, key, row); p != nil {
				sessionOnly = append(sessionOnly, p)
			}
		}
	}

	allSessions := domain.SortedSessionKeys(sessionSet)
	for _, p := range sessionOnly {
		for _, key := range allSessions {
			if _, ok := p.AIAttendance[key]; !ok {
				p.AIAttendance[key] = domain.AttendanceUnknown
			}
		}
	}

	Analyze(st.participants, allSessions, r.shortMinutes)

	r.logger.Debug("reconciliation complete",
		slog.Int("participants", len(st.participants)),
		slog.Int("sessions", len(allSessions)),
		slog.Int("filtered_registrations", st.notes.TotalFiltered()),
		slog.Int("unmatched_attendance", st.notes.UnmatchedAttendance))

	return Result{Participants: st.participants, Sessions: allSessions, Notes: st.notes}
}

func (r *Reconciler) seedCanvas(st *run, users []domain.CanvasUser) {
	byKey := make(map[string]*domain.Participant)
	for _, u := range users {
		key := u.ID.String()
		if key == "" {
			key = "name:" + names.Key(u.DisplayName+" "+u.UserName)
		}
		if p, ok := byKey[key]; ok {
			p.CanvasPostCount += u.PostCount
			continue
		}
		p := domain.NewParticipant(st.uniqueID("canvas:"+strings.TrimPrefix(key, "name:")), domain.OriginCanvas)
		p.CanvasDisplayName = strings.TrimSpace(u.DisplayName)
		p.CanvasUserName = strings.TrimSpace(u.UserName)
		p.CanvasEmail = strings.TrimSpace(u.Email)
		p.CanvasPostCount = u.PostCount
		byKey[key] = p
		st.add(p)
	}
}

func (r *Reconciler) addRegistration(st *run, row ingest.RegistrationRow) {
	if reason := r.rows.check(row.Name, row.Email); reason != "" {
		st.notes.AddFiltered(reason)
		r.logger.Debug("registration row filtered", slog.Int("row", row.Row), slog.String("reason", reason))
		return
	}
	reg := identity.FromRegistration(row.Name, row.Email)

	idx := st.findByName(reg)
	if idx < 0 {
		if reg.Email == "" {
			st.notes.UnmatchedRegistrations++
			return
		}
		base := names.Key(reg.GenericName)
		if base == "" {
			base = reg.Email
		}
		p := domain.NewParticipant(st.uniqueID("registration:"+base), domain.OriginRegistration)
		idx = st.add(p)
	}

	p := st.participants[idx]
	p.RegistrationData = &domain.RegistrationData{
		Name:   reg.GenericName,
		Email:  strings.TrimSpace(row.Email),
		Fields: row.Fields,
	}
	for key, value := range row.Attendance {
		p.AIAttendance[key] = ingest.ParseAttendanceStatus(value)
	}
	st.refresh(idx)
}

// addAttendance attaches row to a participant and returns the participant it
// had to create, if any.
func (r *Reconciler) addAttendance(st *run, session string, row ingest.AttendanceRow) *domain.Participant {
	target := identity.FromAttendance(row.Name, row.OriginalName, row.Email)
	if target.IsEmpty() {
		st.notes.DroppedAttendance++
		return nil
	}

	if m, ok := identity.FindBestMatch(target, st.identities, r.threshold); ok {
		st.notes.MatchedAttendance++
		p := st.participants[m.Index]
		if rec, seen := p.ZoomSessions[session]; seen && rec != nil {
			// rejoining the same meeting
			rec.DurationMinutes += row.DurationMinutes
			rec.Guest = rec.Guest && row.Guest
			if rec.Email == "" {
				rec.Email = row.Email
			}
		} else {
			p.ZoomSessions[session] = sessionRecord(row)
		}
		st.refresh(m.Index)
		return nil
	}

	st.notes.UnmatchedAttendance++
	base := names.Key(row.Name)
	if base == "" {
		base = names.Key(row.OriginalName)
	}
	if base == "" {
		base = strings.ToLower(strings.TrimSpace(row.Email))
	}
	if base == "" {
		base = session
	}
	p := domain.NewParticipant(st.uniqueID("session:"+base), domain.OriginSession)
	p.ZoomSessions[session] = sessionRecord(row)
	p.AIAttendance[session] = domain.AttendancePresent
	st.add(p)
	return p
}

func sessionRecord(row ingest.AttendanceRow) *domain.SessionRecord {
	name := strings.TrimSpace(row.Name)
	if name == "" {
		name = strings.TrimSpace(row.OriginalName)
	}
	return &domain.SessionRecord{
		Name:            name,
		Email:           strings.TrimSpace(row.Email),
		DurationMinutes: row.DurationMinutes,
		Guest:           row.Guest,
	}
}

func (st *run) add(p *domain.Participant) int {
	st.participants = append(st.participants, p)
	st.identities = append(st.identities, identity.FromParticipant(p))
	return len(st.participants) - 1
}

func (st *run) refresh(idx int) {
	st.identities[idx] = identity.FromParticipant(st.participants[idx])
}

// uniqueID returns base, or base with a numeric suffix if base is taken.
func (st *run) uniqueID(base string) string {
	id := base
	for n := 2; st.ids[id]; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	st.ids[id] = true
	return id
}

// findByName matches a registrant by exact name first, then by normalized name.
func (st *run) findByName(target identity.Identity) int {
	wanted := target.Names()
	for i, id := range st.identities {
		for _, n := range id.Names() {
			for _, w := range wanted {
				if strings.EqualFold(strings.TrimSpace(n), w) {
					return i
				}
			}
		}
	}
	for i, id := range st.identities {
		for _, n := range id.Names() {
			for _, w := range wanted {
				if names.Equal(n, w) {
					return i
				}
			}
		}
	}
	return -1
}
