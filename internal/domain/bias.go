package domain

import (
	"time"
)

// BiasFilter narrows the set of completed days that contribute to an average
// bias. ExcludeDate drops one date (so a day's own outcome never corrects
// itself); Month, when non-zero, keeps only days in that calendar month.
type BiasFilter struct {
	ExcludeDate string
	Month       time.Month
}

// PreHighForecasts returns the predicted highs of every forecast row for the
// date issued at or before the clock time the actual high occurred. When
// there is no actual for the date, or its high time does not parse, every
// forecast for the date is included.
func PreHighForecasts(entries []Entry, date string, loc *time.Location) []int {
	cutoff, hasCutoff := highTimeCutoff(entries, date, loc)

	var highs []int
	for _, e := range entries {
		if e.Forecast == nil || e.TargetDate != date {
			continue
		}
		if hasCutoff && e.Forecast.IssuedAt.After(cutoff) {
			continue
		}
		highs = append(highs, e.Forecast.PredictedHigh)
	}
	return highs
}

// PreHighMean returns the mean of the pre-high forecast set for the date.
// ok is false when the set is empty.
func PreHighMean(entries []Entry, date string, loc *time.Location) (float64, bool) {
	highs := PreHighForecasts(entries, date, loc)
	if len(highs) == 0 {
		return 0, false
	}
	sum := 0
	for _, h := range highs {
		sum += h
	}
	return float64(sum) / float64(len(highs)), true
}

// DailyBias returns actual_high - mean(pre-high forecasts) for a completed
// day. ok is false when the date has no actual or no pre-high forecasts.
func DailyBias(entries []Entry, date string, loc *time.Location) (float64, bool) {
	actual, found := ActualFor(entries, date)
	if !found {
		return 0, false
	}
	mean, ok := PreHighMean(entries, date, loc)
	if !ok {
		return 0, false
	}
	return float64(actual.Actual.High) - mean, true
}

// AverageBias returns the arithmetic mean of daily biases over every
// completed day that passes the filter. ok is false when no day qualifies.
func AverageBias(entries []Entry, loc *time.Location, filter BiasFilter) (float64, bool) {
	var (
		sum   float64
		count int
	)
	for _, e := range entries {
		if e.Actual == nil {
			continue
		}
		date := e.TargetDate
		if date == filter.ExcludeDate {
			continue
		}
		if filter.Month != 0 {
			d, err := time.ParseInLocation(DateLayout, date, loc)
			if err != nil || d.Month() != filter.Month {
				continue
			}
		}
		bias, ok := DailyBias(entries, date, loc)
		if !ok {
			continue
		}
		sum += bias
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// BiasCorrectedPrediction computes the frozen snapshot value for a completed
// day: its own pre-high mean plus the average bias over all other completed
// days. ok is false when either term is unavailable.
func BiasCorrectedPrediction(entries []Entry, date string, loc *time.Location) (float64, bool) {
	mean, ok := PreHighMean(entries, date, loc)
	if !ok {
		return 0, false
	}
	bias, ok := AverageBias(entries, loc, BiasFilter{ExcludeDate: date})
	if !ok {
		return 0, false
	}
	return mean + bias, true
}

// LiveBiasEstimate computes the live estimate written into a newly appended
// next-day forecast row: the appended value plus the average bias across all
// completed days. No exclusion is needed since the target date has no actual
// yet. ok is false when no completed day exists.
func LiveBiasEstimate(entries []Entry, predictedHigh int, loc *time.Location) (float64, bool) {
	bias, ok := AverageBias(entries, loc, BiasFilter{})
	if !ok {
		return 0, false
	}
	return float64(predictedHigh) + bias, true
}

// highTimeCutoff resolves the actual row's high time against the target date
// in the station timezone. ok is false when there is no actual for the date
// or the recorded time does not parse.
func highTimeCutoff(entries []Entry, date string, loc *time.Location) (time.Time, bool) {
	actual, found := ActualFor(entries, date)
	if !found || actual.Actual.HighTime == "" {
		return time.Time{}, false
	}
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, false
	}
	for _, layout := range []string{"3:04 PM", "15:04"} {
		if t, err := time.ParseInLocation(layout, actual.Actual.HighTime, loc); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(),
				t.Hour(), t.Minute(), 0, 0, loc), true
		}
	}
	return time.Time{}, false
}
