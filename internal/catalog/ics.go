package catalog

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/rs/zerolog"
	"github.com/teambition/rrule-go"

	"github.com/hay-kot/agenda/internal/core/schedule"
)

// maxOccurrences caps recurrence expansion per event.
const maxOccurrences = 500

// Window bounds the conference. Recurring events are expanded only inside it.
type Window struct {
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`
}

// IsZero returns true if the window is unset.
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Contains returns true if t falls inside the window. A zero window contains
// everything.
func (w Window) Contains(t time.Time) bool {
	if w.IsZero() {
		return true
	}
	return !t.Before(w.Start) && t.Before(w.End)
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	return strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// LoadICS reads an iCalendar feed. Each VEVENT becomes a session: UID is the
// id, SUMMARY the title, LOCATION the room and CATEGORIES the tags.
// Recurring events produce one session per occurrence inside window, with
// ids of the form uid@unix-start. Without a window only the first occurrence
// is kept.
func LoadICS(r io.Reader, window Window, log zerolog.Logger) ([]schedule.Session, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	var sessions []schedule.Session
	for _, ve := range cal.Events() {
		base, rule, err := parseEvent(ve)
		if err != nil {
			log.Warn().Err(err).Msg("skipping calendar event")
			continue
		}

		if rule == "" {
			if window.Contains(base.Start) {
				sessions = append(sessions, base)
			}
			continue
		}

		occurrences, err := expand(base, rule, exdates(ve, log), window)
		if err != nil {
			log.Warn().Err(err).Str("uid", base.ID).Msg("skipping recurring event")
			continue
		}
		sessions = append(sessions, occurrences...)
	}

	return sessions, nil
}

func parseEvent(ve *ical.VEvent) (schedule.Session, string, error) {
	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return schedule.Session{}, "", fmt.Errorf("missing UID")
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return schedule.Session{}, "", fmt.Errorf("event %s: start: %w", uid.Value, err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return schedule.Session{}, "", fmt.Errorf("event %s: end: %w", uid.Value, err)
	}

	s := schedule.Session{
		ID:    uid.Value,
		Start: start.UTC(),
		End:   end.UTC(),
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		s.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil && p.Value != "" {
		s.Room = schedule.Room{ID: slug(p.Value), Name: p.Value}
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		for _, name := range strings.Split(p.Value, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			s.Tags = append(s.Tags, schedule.Tag{ID: slug(name), Name: name})
		}
	}

	if err := s.Validate(); err != nil {
		return schedule.Session{}, "", err
	}

	var rule string
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		rule = p.Value
	}
	return s, rule, nil
}

// exdates returns the excluded occurrence starts. Values may be UTC, local to
// a TZID parameter, floating (read as UTC) or whole dates.
func exdates(ve *ical.VEvent, log zerolog.Logger) []time.Time {
	var out []time.Time
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := time.UTC
		if tz := p.ICalParameters["TZID"]; len(tz) > 0 {
			l, err := time.LoadLocation(tz[0])
			if err != nil {
				log.Warn().Err(err).Str("tzid", tz[0]).Msg("unknown EXDATE time zone, using UTC")
			} else {
				loc = l
			}
		}

		for _, v := range strings.Split(p.Value, ",") {
			t, ok := parseICSTime(strings.TrimSpace(v), loc)
			if !ok {
				log.Warn().Str("exdate", v).Msg("skipping unparseable EXDATE")
				continue
			}
			out = append(out, t)
		}
	}
	return out
}

func parseICSTime(v string, loc *time.Location) (time.Time, bool) {
	if t, err := time.Parse("20060102T150405Z", v); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("20060102T150405", v, loc); err == nil {
		return t.UTC(), true
	}
	if t, err := time.ParseInLocation("20060102", v, loc); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

func expand(base schedule.Session, raw string, excluded []time.Time, window Window) ([]schedule.Session, error) {
	r, err := rrule.StrToRRule(raw)
	if err != nil {
		return nil, fmt.Errorf("parse rrule %q: %w", raw, err)
	}
	r.DTStart(base.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range excluded {
		set.ExDate(ex)
	}

	var starts []time.Time
	if window.IsZero() {
		if first := set.After(base.Start, true); !first.IsZero() {
			starts = []time.Time{first}
		}
	} else {
		next := set.Iterator()
		for t, ok := next(); ok && len(starts) < maxOccurrences; t, ok = next() {
			if !t.Before(window.End) {
				break
			}
			if window.Contains(t) {
				starts = append(starts, t)
			}
		}
	}

	dur := base.Duration()
	out := make([]schedule.Session, 0, len(starts))
	for _, start := range starts {
		occ := base
		occ.ID = fmt.Sprintf("%s@%d", base.ID, start.Unix())
		occ.Start = start.UTC()
		occ.End = start.Add(dur).UTC()
		out = append(out, occ)
	}
	return out, nil
}
