package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/adv-tools/audsync/internal/hearing"
)

// NetworkError reports a transport or HTTP failure. It is never thrown up
// the stack as fatal; callers decide whether to retry.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("calendar %s failed: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ConflictError reports that the mirrored event no longer exists remotely
// (404 on update). The orchestrator recovers by re-creating the event.
type ConflictError struct {
	RemoteEventID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("remote event %s no longer exists", e.RemoteEventID)
}

// TokenProvider yields a valid access token, refreshing if necessary.
type TokenProvider interface {
	EnsureValidToken(ctx context.Context) (string, error)
}

// calendarID pins every operation to the professional's primary calendar.
const calendarID = "primary"

// defaultTimeout bounds each remote call.
const defaultTimeout = 10 * time.Second

// Client mirrors hearings as events on the external calendar.
type Client struct {
	svc     *calendar.Service
	creds   TokenProvider
	cases   CaseLookup
	loc     *time.Location
	timeout time.Duration
}

// NewClient creates a calendar client. httpClient must carry the OAuth2
// transport (the credential manager as token source); creds is consulted
// before every call so missing credentials fail fast as AuthError instead
// of surfacing as opaque transport errors. Extra opts exist for tests.
func NewClient(ctx context.Context, httpClient *http.Client, creds TokenProvider, cases CaseLookup, loc *time.Location, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &Client{
		svc:     svc,
		creds:   creds,
		cases:   cases,
		loc:     loc,
		timeout: defaultTimeout,
	}, nil
}

// CreateEvent mirrors the hearing as a new remote event and returns its id.
func (c *Client) CreateEvent(ctx context.Context, h hearing.Hearing) (string, error) {
	if _, err := c.creds.EnsureValidToken(ctx); err != nil {
		return "", err
	}

	event, err := c.buildEvent(ctx, h)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	created, err := c.svc.Events.Insert(calendarID, event).
		ConferenceDataVersion(1).
		SendUpdates("none").
		Context(ctx).
		Do()
	if err != nil {
		return "", &NetworkError{Op: "create", Err: err}
	}
	return created.Id, nil
}

// UpdateEvent rewrites the remote event. A 404 is reported as ConflictError:
// the event was deleted externally and must be re-created.
func (c *Client) UpdateEvent(ctx context.Context, remoteEventID string, h hearing.Hearing) error {
	if _, err := c.creds.EnsureValidToken(ctx); err != nil {
		return err
	}

	event, err := c.buildEvent(ctx, h)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err = c.svc.Events.Update(calendarID, remoteEventID, event).
		ConferenceDataVersion(1).
		SendUpdates("none").
		Context(ctx).
		Do()
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return &ConflictError{RemoteEventID: remoteEventID}
		}
		return &NetworkError{Op: "update", Err: err}
	}
	return nil
}

// DeleteEvent removes the remote event. An already-gone event (404/410) is
// treated as success.
func (c *Client) DeleteEvent(ctx context.Context, remoteEventID string) error {
	if _, err := c.creds.EnsureValidToken(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.svc.Events.Delete(calendarID, remoteEventID).
		SendUpdates("none").
		Context(ctx).
		Do()
	if err != nil {
		switch statusCode(err) {
		case http.StatusNotFound, http.StatusGone:
			return nil
		}
		return &NetworkError{Op: "delete", Err: err}
	}
	return nil
}

func (c *Client) buildEvent(ctx context.Context, h hearing.Hearing) (*calendar.Event, error) {
	info, err := c.cases.Lookup(ctx, h.CaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve case for hearing %s: %w", h.ID, err)
	}
	return BuildEvent(h, info, c.loc)
}

func statusCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
