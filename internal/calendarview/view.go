// Package calendarview projects a hearing collection onto month, week, day
// and list layouts. All functions are pure: same inputs always yield the
// same outputs, and empty inputs yield explicit empty projections.
//
// Grid arithmetic works on civil dates only. Dates are normalized to
// midnight UTC before any AddDate call, so month and week boundaries can
// never drift under daylight-saving transitions in the caller's zone. Weeks
// start on Monday.
package calendarview

import (
	"sort"
	"time"

	"github.com/adv-tools/audsync/internal/hearing"
)

// MaxVisiblePerDay is how many hearings a month cell shows before it
// collapses the rest into an overflow count.
const MaxVisiblePerDay = 3

// MonthCell is one cell of the month grid. Leading and trailing padding
// cells have Day == 0 and no date.
type MonthCell struct {
	Day      int
	Date     string
	Hearings []hearing.Hearing
	Visible  []hearing.Hearing
	Overflow int
}

// Blank reports whether the cell pads the grid rather than naming a day.
func (c MonthCell) Blank() bool { return c.Day == 0 }

// MonthGrid is the month projection: a Monday-start grid whose cell count
// is always a multiple of 7, with every day of the month in exactly one cell.
type MonthGrid struct {
	Year  int
	Month time.Month
	Cells []MonthCell
}

// Month computes the month grid for the month containing ref.
func Month(hearings []hearing.Hearing, ref time.Time) MonthGrid {
	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, -1).Day()
	leading := mondayOffset(first)

	total := leading + daysInMonth
	if rem := total % 7; rem != 0 {
		total += 7 - rem
	}

	byDate := groupByDate(hearings)
	cells := make([]MonthCell, total)
	for day := 1; day <= daysInMonth; day++ {
		date := time.Date(ref.Year(), ref.Month(), day, 0, 0, 0, 0, time.UTC).Format(hearing.DateLayout)
		hs := byDate[date]
		cell := MonthCell{
			Day:      day,
			Date:     date,
			Hearings: hs,
			Visible:  hs,
		}
		if len(hs) > MaxVisiblePerDay {
			cell.Visible = hs[:MaxVisiblePerDay]
			cell.Overflow = len(hs) - MaxVisiblePerDay
		}
		cells[leading+day-1] = cell
	}

	return MonthGrid{Year: ref.Year(), Month: ref.Month(), Cells: cells}
}

// DayColumn is one day of the week projection.
type DayColumn struct {
	Date     string
	Hearings []hearing.Hearing
}

// Week returns the seven consecutive days of the Monday-start week
// containing ref, each with its time-sorted hearings.
func Week(hearings []hearing.Hearing, ref time.Time) [7]DayColumn {
	day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	monday := day.AddDate(0, 0, -mondayOffset(day))

	byDate := groupByDate(hearings)
	var cols [7]DayColumn
	for i := range cols {
		date := monday.AddDate(0, 0, i).Format(hearing.DateLayout)
		cols[i] = DayColumn{Date: date, Hearings: byDate[date]}
	}
	return cols
}

// Day returns the hearings on the day containing ref, sorted by time
// ascending; hearings with a missing or invalid time sort last.
func Day(hearings []hearing.Hearing, ref time.Time) []hearing.Hearing {
	date := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC).Format(hearing.DateLayout)
	out := []hearing.Hearing{}
	for _, h := range hearings {
		if h.Date == date {
			out = append(out, h)
		}
	}
	sortByTime(out)
	return out
}

// DateGroup is one date bucket of the list projection.
type DateGroup struct {
	Date     string
	Hearings []hearing.Hearing
}

// List groups hearings by their ISO date key, with keys strictly ascending
// and hearings time-sorted within each group. No hearing is dropped or
// duplicated: the group sizes always sum to the input size.
func List(hearings []hearing.Hearing) []DateGroup {
	byDate := groupByDate(hearings)
	keys := make([]string, 0, len(byDate))
	for k := range byDate {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make([]DateGroup, 0, len(keys))
	for _, k := range keys {
		groups = append(groups, DateGroup{Date: k, Hearings: byDate[k]})
	}
	return groups
}

// mondayOffset is the number of days d lies after the Monday of its week.
func mondayOffset(d time.Time) int {
	return (int(d.Weekday()) + 6) % 7
}

// groupByDate buckets hearings by date key and time-sorts each bucket.
func groupByDate(hearings []hearing.Hearing) map[string][]hearing.Hearing {
	byDate := make(map[string][]hearing.Hearing)
	for _, h := range hearings {
		byDate[h.Date] = append(byDate[h.Date], h)
	}
	for _, hs := range byDate {
		sortByTime(hs)
	}
	return byDate
}

func sortByTime(hs []hearing.Hearing) {
	sort.SliceStable(hs, func(i, j int) bool {
		return timeSortKey(hs[i]) < timeSortKey(hs[j])
	})
}

// timeSortKey maps a hearing to minutes since midnight, with unparseable
// times ordered after every valid one.
func timeSortKey(h hearing.Hearing) int {
	t, err := time.Parse(hearing.TimeLayout, h.Time)
	if err != nil {
		return 1 << 20
	}
	return t.Hour()*60 + t.Minute()
}
