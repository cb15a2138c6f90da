// Package identity models a person as seen by one source and scores how likely
// two such views describe the same person.
//
// Each source exposes names under different fields (display name, login,
// "Name (Original Name)" headers). They are folded into an Identity exactly
// once, by the From* constructors, so matching code never probes raw records.
package identity

import (
	"strings"

	"rosterlink/pkg/contracts/domain"
)

// Source tags where an Identity came from.
type Source string

const (
	SourceCanvas       Source = "canvas"
	SourceRegistration Source = "registration"
	SourceAttendance   Source = "attendance"
	SourceParticipant  Source = "participant"
)

// Identity is the matching view of one person from one source.
type Identity struct {
	Source         Source
	SourceID       string
	DisplayName    string
	UserName       string
	GenericName    string
	HeaderVariants []string
	Email          string
}

// Names returns every non-empty name field in a fixed order.
func (id Identity) Names() []string {
	out := make([]string, 0, 3+len(id.HeaderVariants))
	for _, n := range []string{id.DisplayName, id.UserName, id.GenericName} {
		if strings.TrimSpace(n) != "" {
			out = append(out, n)
		}
	}
	for _, n := range id.HeaderVariants {
		if strings.TrimSpace(n) != "" {
			out = append(out, n)
		}
	}
	return out
}

// IsEmpty reports whether the identity carries neither a name nor an email.
func (id Identity) IsEmpty() bool {
	return len(id.Names()) == 0 && strings.TrimSpace(id.Email) == ""
}

// FromCanvasUser converts an LMS author.
func FromCanvasUser(u domain.CanvasUser) Identity {
	return Identity{
		Source:      SourceCanvas,
		SourceID:    u.ID.String(),
		DisplayName: strings.TrimSpace(u.DisplayName),
		UserName:    strings.TrimSpace(u.UserName),
		Email:       normalizeEmail(u.Email),
	}
}

// FromRegistration converts a self-reported registration row.
func FromRegistration(name, email string) Identity {
	return Identity{
		Source:      SourceRegistration,
		GenericName: strings.TrimSpace(name),
		Email:       normalizeEmail(email),
	}
}

// FromAttendance converts a conferencing export row. originalName is the
// value in parentheses of a "Name (Original Name)" cell, if any.
func FromAttendance(name, originalName, email string) Identity {
	id := Identity{
		Source:      SourceAttendance,
		DisplayName: strings.TrimSpace(name),
		Email:       normalizeEmail(email),
	}
	if o := strings.TrimSpace(originalName); o != "" && !strings.EqualFold(o, id.DisplayName) {
		id.HeaderVariants = []string{o}
	}
	return id
}

// FromParticipant exposes every name a reconciled participant is known by.
func FromParticipant(p *domain.Participant) Identity {
	id := Identity{
		Source:      SourceParticipant,
		SourceID:    p.ID,
		DisplayName: p.CanvasDisplayName,
		UserName:    p.CanvasUserName,
		Email:       normalizeEmail(p.CanvasEmail),
	}
	if p.RegistrationData != nil {
		id.GenericName = p.RegistrationData.Name
		if id.Email == "" {
			id.Email = normalizeEmail(p.RegistrationData.Email)
		}
	}
	seen := map[string]bool{}
	for _, n := range []string{id.DisplayName, id.UserName, id.GenericName} {
		seen[strings.ToLower(n)] = true
	}
	for _, key := range domain.SortedSessionKeys(p.ZoomSessions) {
		rec := p.ZoomSessions[key]
		if rec == nil || rec.Name == "" || seen[strings.ToLower(rec.Name)] {
			continue
		}
		seen[strings.ToLower(rec.Name)] = true
		id.HeaderVariants = append(id.HeaderVariants, rec.Name)
		if id.Email == "" {
			id.Email = normalizeEmail(rec.Email)
		}
	}
	return id
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
