package domain

import "time"

// Windows maps the current civil time to the named gating windows that
// enable or disable ingestion operations. The three windows are independent,
// non-exclusive predicates recomputed on every call; no window state is
// persisted across invocations.
type Windows struct {
	loc *time.Location
}

// NewWindows binds the gating predicates to a civil timezone.
func NewWindows(loc *time.Location) Windows {
	return Windows{loc: loc}
}

// Location returns the bound civil timezone.
func (w Windows) Location() *time.Location {
	return w.loc
}

// Now returns the current time in the bound timezone.
func (w Windows) Now() time.Time {
	return clock.Now().In(w.loc)
}

// Today returns the current calendar date in ISO form.
func (w Windows) Today() string {
	return w.Now().Format(DateLayout)
}

// Yesterday returns yesterday's calendar date in ISO form.
func (w Windows) Yesterday() string {
	return w.Now().AddDate(0, 0, -1).Format(DateLayout)
}

// Tomorrow returns tomorrow's calendar date in ISO form.
func (w Windows) Tomorrow() string {
	return w.Now().AddDate(0, 0, 1).Format(DateLayout)
}

// InFreezeWindow reports whether t falls in the midnight-4am window during
// which the secondary feed skips its fetch entirely, avoiding spurious pulls
// against a just-rolled-over date.
func (w Windows) InFreezeWindow(t time.Time) bool {
	h := t.In(w.loc).Hour()
	return h >= 0 && h < 4
}

// AfterEveningCutoff reports whether t is at or past 18:00 local. Past the
// cutoff, same-day forecast capture is disallowed regardless of
// change-detection: today's number is locked in for provisional-actual use.
func (w Windows) AfterEveningCutoff(t time.Time) bool {
	return t.In(w.loc).Hour() >= 18
}

// InMorningWindow reports whether t falls in the midnight-noon window during
// which the finalize-yesterday upsert is allowed to run.
func (w Windows) InMorningWindow(t time.Time) bool {
	h := t.In(w.loc).Hour()
	return h >= 0 && h < 12
}
