package hearing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDraft() Draft {
	return Draft{
		CaseID: "case-1",
		Date:   "2024-03-05",
		Time:   "14:00",
		Kind:   "Audiência de Instrução",
		Mode:   ModeVirtual,
	}
}

func TestDraftValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Draft)
		field  string
	}{
		{"missing case", func(d *Draft) { d.CaseID = "" }, "caseId"},
		{"missing kind", func(d *Draft) { d.Kind = "" }, "kind"},
		{"unknown mode", func(d *Draft) { d.Mode = "remote" }, "mode"},
		{"empty mode", func(d *Draft) { d.Mode = "" }, "mode"},
		{"bad date", func(d *Draft) { d.Date = "05/03/2024" }, "date"},
		{"impossible date", func(d *Draft) { d.Date = "2024-02-30" }, "date"},
		{"bad time", func(d *Draft) { d.Time = "25:99" }, "time"},
		{"missing time", func(d *Draft) { d.Time = "" }, "time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(&d)

			err := d.Validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	assert.NoError(t, validDraft().Validate())
}

func TestModeAndStatusEnums(t *testing.T) {
	assert.True(t, ModeInPerson.Valid())
	assert.True(t, ModeVirtual.Valid())
	assert.True(t, ModeHybrid.Valid())
	assert.False(t, Mode("presencial").Valid())

	m, err := ParseMode("hybrid")
	require.NoError(t, err)
	assert.Equal(t, ModeHybrid, m)
	_, err = ParseMode("in-person")
	assert.Error(t, err)

	for _, s := range []SyncStatus{StatusUnsynced, StatusPending, StatusSynced, StatusFailed, StatusConflict} {
		assert.True(t, s.Valid())
	}
	assert.False(t, SyncStatus("queued").Valid())
}

func TestStartAt(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	h := Hearing{ID: "h1", Date: "2024-03-05", Time: "14:00"}
	start, err := h.StartAt(loc)
	require.NoError(t, err)

	assert.Equal(t, "2024-03-05T14:00:00-03:00", start.Format(time.RFC3339))

	h.Time = "nope"
	_, err = h.StartAt(loc)
	assert.Error(t, err)
	assert.False(t, h.HasValidTime())
}
