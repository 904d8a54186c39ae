package remote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adv-tools/audsync/internal/hearing"
)

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	return loc
}

func virtualHearing() hearing.Hearing {
	return hearing.Hearing{
		ID:          "h1",
		CaseID:      "case-1",
		Date:        "2024-03-05",
		Time:        "14:00",
		Kind:        "Audiência de Instrução",
		Mode:        hearing.ModeVirtual,
		Notes:       "Levar documentos originais",
		MeetingLink: "https://meet.example/x",
	}
}

func TestBuildEvent_VirtualHearing(t *testing.T) {
	info := CaseInfo{Number: "0001234-56.2024.8.26.0100", Title: "Silva vs. Souza"}

	event, err := BuildEvent(virtualHearing(), info, saoPaulo(t))
	require.NoError(t, err)

	assert.Equal(t, "Audiência de Instrução — Processo 0001234-56.2024.8.26.0100", event.Summary)
	assert.Equal(t, "2024-03-05T14:00:00-03:00", event.Start.DateTime)
	assert.Equal(t, "2024-03-05T15:00:00-03:00", event.End.DateTime)
	assert.Equal(t, "America/Sao_Paulo", event.Start.TimeZone)
	assert.Equal(t, "America/Sao_Paulo", event.End.TimeZone)
	assert.Contains(t, event.Description, "Levar documentos originais")
	assert.Contains(t, event.Description, "Silva vs. Souza")

	require.NotNil(t, event.ConferenceData)
	require.Len(t, event.ConferenceData.EntryPoints, 1)
	assert.Equal(t, "https://meet.example/x", event.ConferenceData.EntryPoints[0].Uri)
	assert.Equal(t, "video", event.ConferenceData.EntryPoints[0].EntryPointType)
}

func TestBuildEvent_FixedReminders(t *testing.T) {
	event, err := BuildEvent(virtualHearing(), CaseInfo{Number: "123"}, saoPaulo(t))
	require.NoError(t, err)

	require.NotNil(t, event.Reminders)
	assert.False(t, event.Reminders.UseDefault)
	require.Len(t, event.Reminders.Overrides, 2)
	assert.EqualValues(t, 1440, event.Reminders.Overrides[0].Minutes)
	assert.EqualValues(t, 30, event.Reminders.Overrides[1].Minutes)
}

func TestBuildEvent_NoConferenceWithoutLink(t *testing.T) {
	h := virtualHearing()
	h.MeetingLink = ""
	h.Mode = hearing.ModeInPerson
	h.Location = "Fórum Central, sala 204"

	event, err := BuildEvent(h, CaseInfo{Number: "123"}, saoPaulo(t))
	require.NoError(t, err)

	assert.Nil(t, event.ConferenceData)
	assert.Equal(t, "Fórum Central, sala 204", event.Location)
}

func TestBuildEvent_InvalidInstant(t *testing.T) {
	h := virtualHearing()
	h.Time = "25:00"

	_, err := BuildEvent(h, CaseInfo{Number: "123"}, saoPaulo(t))
	assert.Error(t, err)
}
