package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"rosterlink/pkg/contracts/domain"
)

var sessionHeaderRe = regexp.MustCompile(`(?i)\b(?:session|week|class|day|meeting)\s*#?\s*(\d+)`)

// RegistrationRow is one self-reported registration. Row is the 1-based
// position among data rows.
type RegistrationRow struct {
	Row        int
	Name       string
	Email      string
	Attendance map[string]string
	Fields     map[string]string
}

// RegistrationColumns is the detected layout of a registration sheet.
// Sessions maps session key to header; SessionOrder lists the keys in column
// order.
type RegistrationColumns struct {
	Name         string
	FirstName    string
	LastName     string
	Email        string
	Sessions     map[string]string
	SessionOrder []string
}

// DetectRegistrationColumns finds name, email and per-session attendance
// columns by header. Without recognizable headers the first column is the
// name, the second the email and every later column a session in order.
func DetectRegistrationColumns(headers []string) RegistrationColumns {
	cols := RegistrationColumns{Sessions: make(map[string]string)}
	used := make(map[string]bool)

	for _, h := range headers {
		l := strings.ToLower(h)
		switch {
		case cols.Email == "" && (strings.Contains(l, "email") || strings.Contains(l, "e-mail")):
			cols.Email = h
		case cols.FirstName == "" && (strings.Contains(l, "first name") || l == "first"):
			cols.FirstName = h
		case cols.LastName == "" && (strings.Contains(l, "last name") || strings.Contains(l, "surname") || l == "last"):
			cols.LastName = h
		case cols.Name == "" && strings.Contains(l, "name") && !strings.Contains(l, "user"):
			cols.Name = h
		default:
			continue
		}
		used[h] = true
	}

	var unnumbered []string
	for _, h := range headers {
		if used[h] {
			continue
		}
		l := strings.ToLower(h)
		if m := sessionHeaderRe.FindStringSubmatch(h); m != nil {
			n, _ := strconv.Atoi(m[1])
			cols.addSession(domain.SessionKey(n), h)
			continue
		}
		if strings.Contains(l, "attend") || strings.Contains(l, "session") {
			unnumbered = append(unnumbered, h)
		}
	}

	if cols.Name == "" && cols.FirstName == "" && cols.Email == "" && len(cols.Sessions) == 0 && len(unnumbered) == 0 {
		return positionalColumns(headers)
	}
	for _, h := range unnumbered {
		cols.addSession(domain.SessionKey(len(cols.SessionOrder)+1), h)
	}
	return cols
}

func (c *RegistrationColumns) addSession(key, header string) {
	if _, dup := c.Sessions[key]; dup {
		return
	}
	c.Sessions[key] = header
	c.SessionOrder = append(c.SessionOrder, key)
}

func positionalColumns(headers []string) RegistrationColumns {
	cols := RegistrationColumns{Sessions: make(map[string]string)}
	if len(headers) > 0 {
		cols.Name = headers[0]
	}
	if len(headers) > 1 {
		cols.Email = headers[1]
	}
	for i := 2; i < len(headers); i++ {
		cols.addSession(domain.SessionKey(i-1), headers[i])
	}
	return cols
}

// ParseRegistrations maps parsed rows onto registrations. Rows are returned
// as found; validity is decided by the reconciler.
func ParseRegistrations(res ParseResult) ([]RegistrationRow, RegistrationColumns) {
	cols := DetectRegistrationColumns(res.Headers)
	rows := make([]RegistrationRow, 0, len(res.Records))
	for i, rec := range res.Records {
		r := RegistrationRow{
			Row:        i + 1,
			Name:       cols.name(rec),
			Email:      rec.Get(cols.Email),
			Attendance: make(map[string]string, len(cols.Sessions)),
			Fields:     make(map[string]string, len(rec)),
		}
		for key, h := range cols.Sessions {
			r.Attendance[key] = rec.Get(h)
		}
		for k, v := range rec {
			r.Fields[k] = strings.TrimSpace(v)
		}
		rows = append(rows, r)
	}
	return rows, cols
}

func (c RegistrationColumns) name(rec Record) string {
	if c.Name != "" {
		if n := rec.Get(c.Name); n != "" {
			return n
		}
	}
	return strings.TrimSpace(rec.Get(c.FirstName) + " " + rec.Get(c.LastName))
}

// ParseAttendanceStatus reads a self-reported attendance cell. Anything but
// present or absent, in any case and padding, is unknown.
func ParseAttendanceStatus(value string) domain.AttendanceStatus {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "present":
		return domain.AttendancePresent
	case "absent":
		return domain.AttendanceAbsent
	default:
		return domain.AttendanceUnknown
	}
}
