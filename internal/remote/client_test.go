package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"google.golang.org/api/option"

	"github.com/adv-tools/audsync/internal/auth"
)

// fakeTokenProvider stands in for the credential manager.
type fakeTokenProvider struct {
	err   error
	calls int
}

func (f *fakeTokenProvider) EnsureValidToken(ctx context.Context) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "access-token", nil
}

// fakeCaseLookup resolves every case to a fixed record.
type fakeCaseLookup struct{}

func (fakeCaseLookup) Lookup(ctx context.Context, caseID string) (CaseInfo, error) {
	return CaseInfo{Number: "0001234-56.2024.8.26.0100", Title: "Silva vs. Souza"}, nil
}

func newTestClient(t *testing.T, creds TokenProvider, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), srv.Client(), creds, fakeCaseLookup{}, saoPaulo(t),
		option.WithEndpoint(srv.URL))
	require.NoError(t, err)
	return client
}

func TestCreateEvent(t *testing.T) {
	var gotPath string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "evt-123"}`)
	})

	creds := &fakeTokenProvider{}
	client := newTestClient(t, creds, handler)

	id, err := client.CreateEvent(context.Background(), virtualHearing())
	require.NoError(t, err)
	assert.Equal(t, "evt-123", id)
	assert.Equal(t, "POST /calendars/primary/events", gotPath)
	assert.Equal(t, 1, creds.calls, "token must be validated before the call")
}

func TestCreateEvent_FailsFastWithoutCredential(t *testing.T) {
	serverHit := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { serverHit = true })

	creds := &fakeTokenProvider{err: &auth.AuthError{Op: "no credential stored"}}
	client := newTestClient(t, creds, handler)

	_, err := client.CreateEvent(context.Background(), virtualHearing())
	var aerr *auth.AuthError
	assert.ErrorAs(t, err, &aerr)
	assert.False(t, serverHit, "no request may be issued without a valid token")
}

func TestCreateEvent_NetworkError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"code": 500}}`, http.StatusInternalServerError)
	})
	client := newTestClient(t, &fakeTokenProvider{}, handler)

	_, err := client.CreateEvent(context.Background(), virtualHearing())
	var nerr *NetworkError
	assert.ErrorAs(t, err, &nerr)
}

func TestUpdateEvent(t *testing.T) {
	var gotPath string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "evt-123"}`)
	})
	client := newTestClient(t, &fakeTokenProvider{}, handler)

	err := client.UpdateEvent(context.Background(), "evt-123", virtualHearing())
	require.NoError(t, err)
	assert.Equal(t, "PUT /calendars/primary/events/evt-123", gotPath)
}

func TestUpdateEvent_404IsConflict(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"code": 404, "message": "Not Found"}}`, http.StatusNotFound)
	})
	client := newTestClient(t, &fakeTokenProvider{}, handler)

	err := client.UpdateEvent(context.Background(), "evt-gone", virtualHearing())
	var cerr *ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "evt-gone", cerr.RemoteEventID)
}

func TestDeleteEvent(t *testing.T) {
	var gotPath string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})
	client := newTestClient(t, &fakeTokenProvider{}, handler)

	require.NoError(t, client.DeleteEvent(context.Background(), "evt-123"))
	assert.Equal(t, "DELETE /calendars/primary/events/evt-123", gotPath)
}

func TestDeleteEvent_AlreadyGoneIsSuccess(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"code": 404, "message": "Not Found"}}`, http.StatusNotFound)
	})
	client := newTestClient(t, &fakeTokenProvider{}, handler)

	assert.NoError(t, client.DeleteEvent(context.Background(), "evt-gone"))
}
