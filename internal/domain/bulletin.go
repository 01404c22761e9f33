package domain

import (
	"regexp"
	"strings"
)

// Bulletin section names recognized by the parser.
const (
	SectionToday     = "TODAY"
	SectionYesterday = "YESTERDAY"
)

// MaxReading is one parsed "MAXIMUM" observation from a bulletin section:
// the observed high as decimal text and its normalized clock time.
type MaxReading struct {
	Temp string
	Time string
}

// timeTokenRe matches the bulletin's time forms: compact 3-4 digits ("145",
// "1226") or H:MM / HH:MM.
var timeTokenRe = regexp.MustCompile(`^\d{3,4}$|^\d{1,2}:\d{2}$`)

// ParseBulletinSections scans a CLI bulletin body and returns the first valid
// MAXIMUM reading for the TODAY and YESTERDAY sections. A section with no
// valid reading maps to nil; malformed lines are skipped, never an error.
//
// The common bulletin layout puts the section header on its own line with
// MAXIMUM on a following line:
//
//	TODAY...
//	  MAXIMUM         75    145 PM
func ParseBulletinSections(text string) map[string]*MaxReading {
	sections := map[string]*MaxReading{
		SectionToday:     nil,
		SectionYesterday: nil,
	}

	current := ""
	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.ToUpper(strings.TrimSpace(rawLine))

		if strings.HasPrefix(line, SectionToday) {
			current = SectionToday
			continue
		}
		if strings.HasPrefix(line, SectionYesterday) {
			current = SectionYesterday
			continue
		}

		if current == "" || !strings.Contains(line, "MAXIMUM") {
			continue
		}
		if reading := parseMaximumLine(line); reading != nil && sections[current] == nil {
			// First valid MAXIMUM line per section wins.
			sections[current] = reading
		}
	}

	return sections
}

// parseMaximumLine extracts (temp, time) from a tokenized MAXIMUM line.
// The token after MAXIMUM must be all digits; the next must be a time token;
// an optional AM/PM marker may follow. Returns nil when either is missing.
func parseMaximumLine(line string) *MaxReading {
	parts := strings.Fields(line)
	idx := -1
	for i, p := range parts {
		if p == "MAXIMUM" {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	var temp, timeTok, ampm string
	if idx+1 < len(parts) && isAllDigits(parts[idx+1]) {
		temp = parts[idx+1]
	}
	if idx+2 < len(parts) && timeTokenRe.MatchString(parts[idx+2]) {
		timeTok = parts[idx+2]
	}
	if idx+3 < len(parts) && (parts[idx+3] == "AM" || parts[idx+3] == "PM") {
		ampm = parts[idx+3]
	}

	if temp == "" || timeTok == "" {
		return nil
	}
	return &MaxReading{Temp: temp, Time: NormalizeClockTime(timeTok, ampm)}
}

// NormalizeClockTime converts a bulletin time token to "H:MM" form:
// "154" and "0154" become "1:54", "1226" becomes "12:26", and "H:MM" passes
// through. The AM/PM marker is appended when present. If the hour is not an
// integer the raw token is returned unchanged rather than failing.
func NormalizeClockTime(raw, ampm string) string {
	raw = strings.TrimSpace(raw)
	ampm = strings.ToUpper(strings.TrimSpace(ampm))

	var hh, mm string
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		hh, mm = raw[:i], raw[i+1:]
	} else {
		digits := raw
		for len(digits) < 4 {
			digits = "0" + digits
		}
		hh, mm = digits[:2], digits[2:]
		hh = strings.TrimPrefix(hh, "0")
	}

	if !isAllDigits(hh) || hh == "" {
		return raw
	}
	hh = strings.TrimLeft(hh, "0")
	if hh == "" {
		hh = "0"
	}

	clean := hh + ":" + mm
	if ampm != "" {
		return clean + " " + ampm
	}
	return clean
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
