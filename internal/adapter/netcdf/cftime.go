package netcdf

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Calendars understood by DecodeTimes.
const (
	calStandard  = "standard"
	calGregorian = "gregorian"
	calProleptic = "proleptic_gregorian"
	calNoLeap    = "noleap"
	cal365       = "365_day"
	calAllLeap   = "all_leap"
	cal366       = "366_day"
	cal360       = "360_day"
)

var unitSeconds = map[string]float64{
	"days": 86400, "day": 86400, "d": 86400,
	"hours": 3600, "hour": 3600, "h": 3600,
	"minutes": 60, "minute": 60, "min": 60,
	"seconds": 1, "second": 1, "s": 1, "sec": 1,
}

var epochLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2 15:04:05",
	"2006-1-2",
}

// DecodeTimes converts CF time offsets such as "days since 1850-01-01" into
// dates. Non-standard calendars are mapped onto the civil calendar day by day:
// a noleap 365-day year stays one civil year, so grouping by year is exact.
func DecodeTimes(values []float64, units, calendar string) ([]time.Time, error) {
	unit, since, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return nil, fmt.Errorf("time units %q: expected \"<unit> since <date>\"", units)
	}
	secs, ok := unitSeconds[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return nil, fmt.Errorf("time units %q: unsupported unit %q", units, unit)
	}
	epoch, err := parseEpoch(since)
	if err != nil {
		return nil, fmt.Errorf("time units %q: %w", units, err)
	}

	cal := strings.ToLower(strings.TrimSpace(calendar))
	if cal == "" {
		cal = calStandard
	}
	out := make([]time.Time, len(values))
	for i, v := range values {
		offset := v * secs
		switch cal {
		case calStandard, calGregorian, calProleptic:
			out[i] = epoch.Add(time.Duration(math.Round(offset * float64(time.Second))))
		case calNoLeap, cal365:
			out[i] = fixedYearDate(epoch, offset, 365, noLeapMonths)
		case calAllLeap, cal366:
			out[i] = fixedYearDate(epoch, offset, 366, allLeapMonths)
		case cal360:
			out[i] = fixedYearDate(epoch, offset, 360, thirtyDayMonths)
		default:
			return nil, fmt.Errorf("unsupported calendar %q", calendar)
		}
	}
	return out, nil
}

// EncodeYears returns the first day of each year, used for yearly outputs.
func EncodeYears(years []int) []time.Time {
	out := make([]time.Time, len(years))
	for i, y := range years {
		out[i] = time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return out
}

func parseEpoch(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	// Some producers append " UTC" or fractional seconds.
	s = strings.TrimSuffix(s, " UTC")
	if i := strings.IndexByte(s, '.'); i > 0 && strings.Count(s, ":") == 2 {
		s = s[:i]
	}
	for _, layout := range epochLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable reference date %q", s)
}

var (
	noLeapMonths    = []int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	allLeapMonths   = []int{31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	thirtyDayMonths = []int{30, 30, 30, 30, 30, 30, 30, 30, 30, 30, 30, 30}
)

// fixedYearDate advances the epoch by offset seconds in a calendar whose years
// all have yearLen days, and returns the resulting year, month and day as a
// civil date. Days that do not exist in the civil calendar (Feb 30) are
// clamped to the end of the month so the year is preserved.
func fixedYearDate(epoch time.Time, offset float64, yearLen int, months []int) time.Time {
	dayOfYear := 0
	for m := 0; m < int(epoch.Month())-1; m++ {
		dayOfYear += months[m]
	}
	dayOfYear += epoch.Day() - 1

	clock := float64(epoch.Hour()*3600+epoch.Minute()*60+epoch.Second()) + offset
	days := int(math.Floor(clock / 86400))
	rem := clock - float64(days)*86400

	total := dayOfYear + days
	year := epoch.Year() + floorDiv(total, yearLen)
	doy := total - floorDiv(total, yearLen)*yearLen

	month := 0
	for doy >= months[month] {
		doy -= months[month]
		month++
	}
	day := min(doy+1, daysIn(year, time.Month(month+1)))
	return time.Date(year, time.Month(month+1), day, 0, 0, 0, 0, time.UTC).
		Add(time.Duration(math.Round(rem * float64(time.Second))))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func daysIn(year int, m time.Month) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
