package calendarview

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adv-tools/audsync/internal/hearing"
)

func mkHearing(id, date, timeOfDay string) hearing.Hearing {
	return hearing.Hearing{
		ID:     id,
		CaseID: "case-1",
		Date:   date,
		Time:   timeOfDay,
		Kind:   "Audiência de Instrução",
		Mode:   hearing.ModeInPerson,
	}
}

func TestMonth_March2024Layout(t *testing.T) {
	// March 2024 has 31 days and the 1st is a Friday: 4 leading blanks,
	// 35 cells in total.
	grid := Month(nil, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC))

	require.Len(t, grid.Cells, 35)
	for i := 0; i < 4; i++ {
		assert.True(t, grid.Cells[i].Blank(), "cell %d should be blank", i)
	}
	assert.Equal(t, 1, grid.Cells[4].Day)
	assert.Equal(t, 31, grid.Cells[34].Day)
}

func TestMonth_PropertiesAcrossMonths(t *testing.T) {
	// Sweep four years of months, including leap February and year ends.
	for year := 2023; year <= 2026; year++ {
		for month := time.January; month <= time.December; month++ {
			ref := time.Date(year, month, 10, 0, 0, 0, 0, time.UTC)
			grid := Month(nil, ref)

			assert.Zero(t, len(grid.Cells)%7, "%d-%02d: cell count %d not divisible by 7", year, month, len(grid.Cells))

			daysInMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()
			seen := map[int]int{}
			for _, cell := range grid.Cells {
				if !cell.Blank() {
					seen[cell.Day]++
				}
			}
			require.Len(t, seen, daysInMonth, "%d-%02d", year, month)
			for day := 1; day <= daysInMonth; day++ {
				assert.Equal(t, 1, seen[day], "%d-%02d day %d", year, month, day)
			}
		}
	}
}

func TestMonth_CellTruncationKeepsData(t *testing.T) {
	hearings := []hearing.Hearing{
		mkHearing("h4", "2024-03-05", "16:00"),
		mkHearing("h1", "2024-03-05", "09:00"),
		mkHearing("h3", "2024-03-05", "14:00"),
		mkHearing("h5", "2024-03-05", "17:00"),
		mkHearing("h2", "2024-03-05", "10:30"),
	}

	grid := Month(hearings, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))

	var cell MonthCell
	for _, c := range grid.Cells {
		if c.Day == 5 {
			cell = c
		}
	}

	require.Len(t, cell.Hearings, 5, "underlying data must not be lost")
	require.Len(t, cell.Visible, MaxVisiblePerDay)
	assert.Equal(t, 2, cell.Overflow)
	assert.Equal(t, []string{"h1", "h2", "h3"}, []string{cell.Visible[0].ID, cell.Visible[1].ID, cell.Visible[2].ID})
}

func TestWeek_StartsMondayAndIsConsecutive(t *testing.T) {
	refs := []time.Time{
		time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),     // Tuesday
		time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),     // Monday itself
		time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC),    // Sunday
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),   // year boundary
		time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), // leap day
		time.Date(2024, time.November, 3, 0, 0, 0, 0, time.UTC),  // DST weekend in many zones
	}

	for _, ref := range refs {
		cols := Week(nil, ref)

		first, err := time.Parse(hearing.DateLayout, cols[0].Date)
		require.NoError(t, err)
		assert.Equal(t, time.Monday, first.Weekday(), "ref %s", ref)

		for i := 1; i < 7; i++ {
			prev, _ := time.Parse(hearing.DateLayout, cols[i-1].Date)
			cur, err := time.Parse(hearing.DateLayout, cols[i].Date)
			require.NoError(t, err)
			assert.Equal(t, prev.AddDate(0, 0, 1), cur, "ref %s column %d", ref, i)
		}
	}
}

func TestWeek_BucketsHearingsByDay(t *testing.T) {
	hearings := []hearing.Hearing{
		mkHearing("tue-2", "2024-03-05", "15:00"),
		mkHearing("tue-1", "2024-03-05", "09:00"),
		mkHearing("fri", "2024-03-08", "11:00"),
		mkHearing("outside", "2024-03-12", "11:00"),
	}

	cols := Week(hearings, time.Date(2024, time.March, 6, 0, 0, 0, 0, time.UTC))

	require.Equal(t, "2024-03-05", cols[1].Date)
	require.Len(t, cols[1].Hearings, 2)
	assert.Equal(t, "tue-1", cols[1].Hearings[0].ID)
	assert.Equal(t, "tue-2", cols[1].Hearings[1].ID)
	assert.Len(t, cols[4].Hearings, 1)
	assert.Empty(t, cols[6].Hearings)
}

func TestDay_SortsByTimeWithInvalidLast(t *testing.T) {
	hearings := []hearing.Hearing{
		mkHearing("no-time", "2024-03-05", ""),
		mkHearing("late", "2024-03-05", "16:00"),
		mkHearing("early", "2024-03-05", "08:30"),
		mkHearing("other-day", "2024-03-06", "08:00"),
	}

	got := Day(hearings, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC))

	require.Len(t, got, 3)
	assert.Equal(t, "early", got[0].ID)
	assert.Equal(t, "late", got[1].ID)
	assert.Equal(t, "no-time", got[2].ID)
}

func TestDay_EmptyIsExplicit(t *testing.T) {
	got := Day(nil, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestList_PreservesCardinalityAndOrder(t *testing.T) {
	var hearings []hearing.Hearing
	for i := 0; i < 12; i++ {
		date := fmt.Sprintf("2024-03-%02d", (i%4)+1)
		hearings = append(hearings, mkHearing(fmt.Sprintf("h%d", i), date, fmt.Sprintf("%02d:00", 18-i)))
	}

	groups := List(hearings)

	total := 0
	for i, g := range groups {
		total += len(g.Hearings)
		if i > 0 {
			assert.Less(t, groups[i-1].Date, g.Date, "group keys must be strictly ascending")
		}
		for j := 1; j < len(g.Hearings); j++ {
			assert.LessOrEqual(t, g.Hearings[j-1].Time, g.Hearings[j].Time)
		}
	}
	assert.Equal(t, len(hearings), total, "no hearing may be dropped or duplicated")
}

func TestList_Empty(t *testing.T) {
	groups := List(nil)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}
