// Package domain models the forecast/actual temperature log for a single
// National Weather Service (NWS) observation station.
//
// # Data Sources
//
// Forecast rows come from the NWS points API (https://api.weather.gov), which
// resolves a lat/lon to a forecast URL whose periods carry a numeric high and
// a free-text detail, and from the AccuWeather 5-day daily forecast API.
// Actual rows come from the NWS CLI climate product, a loosely structured
// free-text bulletin issued by the local forecast office.
//
// # CLI Bulletin Conventions
//
// The bulletin groups readings under section headers on their own lines
// ("TODAY", "YESTERDAY"). Within a section, the observed high appears on a
// line containing the token "MAXIMUM":
//
//	MAXIMUM 75 145 PM    →  75°F at 1:45 PM
//
// The time token is either H:MM/HH:MM or a compact 3-4 digit form that is
// left-padded to 4 digits and split into hour:minute. The bulletin format is
// not versioned; the first MAXIMUM line per section is taken and later ones
// ignored. Malformed readings degrade softly rather than failing the parse.
//
// # Ledger Semantics
//
// The log is append-mostly. Per target date there is at most one Actual row
// (maintained by upsert, not append), forecast capture freezes once the
// Actual is known, and a forecast is appended only when its value differs
// from the most recently recorded forecast for that date and source. The
// bias-corrected prediction is a frozen snapshot: written once per date,
// after the Actual exists, and never overwritten.
//
// # Bias Correction
//
// For a completed day, the pre-high forecast set is every forecast issued at
// or before the clock time the high occurred. Daily bias is the actual high
// minus the mean of that set; the average bias over other completed days
// corrects a day's own pre-high mean into its bias-corrected prediction.
package domain
