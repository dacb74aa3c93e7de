package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client is a client for the portal API.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new portal API client.
func NewClient(config Config) *Client {
	config.Normalize()
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Event is an event as listed by the portal.
type Event struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Venue     string `json:"venue,omitempty"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Registration is the signed-in user's registration for an event.
type Registration struct {
	ID      string `json:"id"`
	EventID string `json:"event_id"`
	Status  string `json:"status,omitempty"`
}

// errorPayload is the portal's error body.
type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ListEvents retrieves all events visible to the user.
func (c *Client) ListEvents(ctx context.Context) ([]Event, error) {
	var events []Event
	if err := c.do(ctx, "list events", http.MethodGet, "/api/events", nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CheckRelation reports whether the user holds the named relation (for
// example "bookmarks") to an entity.
func (c *Client) CheckRelation(ctx context.Context, relation, entityID string) (bool, error) {
	var resp struct {
		Exists bool `json:"exists"`
	}
	err := c.do(ctx, "check "+relation, http.MethodGet, relationPath(relation, entityID), nil, &resp)
	if err != nil {
		return false, err
	}
	return resp.Exists, nil
}

// CheckRelations checks many entities in one request.
func (c *Client) CheckRelations(ctx context.Context, relation string, entityIDs []string) (map[string]bool, error) {
	req := struct {
		IDs []string `json:"ids"`
	}{IDs: entityIDs}
	var resp struct {
		Results map[string]bool `json:"results"`
	}
	path := "/api/" + url.PathEscape(relation) + "/check"
	if err := c.do(ctx, "check "+relation, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		resp.Results = map[string]bool{}
	}
	return resp.Results, nil
}

// AddRelation creates the named relation to an entity.
func (c *Client) AddRelation(ctx context.Context, relation, entityID string) error {
	return c.do(ctx, "add "+relation, http.MethodPost, relationPath(relation, entityID), nil, nil)
}

// RemoveRelation deletes the named relation to an entity.
func (c *Client) RemoveRelation(ctx context.Context, relation, entityID string) error {
	return c.do(ctx, "remove "+relation, http.MethodDelete, relationPath(relation, entityID), nil, nil)
}

// FindRegistration returns the user's registration for an event, if any.
// A registration without an event id is only trusted when it is the sole
// result of the filtered query.
func (c *Client) FindRegistration(ctx context.Context, eventID string) (*Registration, error) {
	var regs []Registration
	path := "/api/registrations?event_id=" + url.QueryEscape(eventID)
	if err := c.do(ctx, "find registration", http.MethodGet, path, nil, &regs); err != nil {
		return nil, err
	}
	for i := range regs {
		if regs[i].EventID == eventID {
			return &regs[i], nil
		}
	}
	if len(regs) == 1 && regs[0].EventID == "" {
		return &regs[0], nil
	}
	return nil, nil
}

// Register registers the user for an event.
func (c *Client) Register(ctx context.Context, eventID string) (*Registration, error) {
	var reg Registration
	path := "/api/events/" + url.PathEscape(eventID) + "/register"
	if err := c.do(ctx, "register", http.MethodPost, path, nil, &reg); err != nil {
		return nil, err
	}
	if reg.EventID == "" {
		reg.EventID = eventID
	}
	return &reg, nil
}

// CancelRegistration cancels a registration by its id.
func (c *Client) CancelRegistration(ctx context.Context, registrationID string) error {
	path := "/api/registrations/" + url.PathEscape(registrationID)
	return c.do(ctx, "cancel registration", http.MethodDelete, path, nil, nil)
}

// SubmitFeedback posts feedback for an event.
func (c *Client) SubmitFeedback(ctx context.Context, eventID string, feedback map[string]any) error {
	path := "/api/events/" + url.PathEscape(eventID) + "/feedback"
	return c.do(ctx, "submit feedback", http.MethodPost, path, feedback, nil)
}

// RequestCertificate requests a participation certificate for an event.
func (c *Client) RequestCertificate(ctx context.Context, eventID string, request map[string]any) error {
	path := "/api/events/" + url.PathEscape(eventID) + "/certificates"
	return c.do(ctx, "request certificate", http.MethodPost, path, request, nil)
}

func relationPath(relation, entityID string) string {
	return "/api/" + url.PathEscape(relation) + "/" + url.PathEscape(entityID)
}

// do performs a JSON request and decodes the response into out when non-nil.
// Every failure is returned as an *Error.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &Error{Op: op, Kind: KindUnknown, Message: "encoding request", Err: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return &Error{Op: op, Kind: KindUnknown, Message: err.Error(), Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Kind: classify(err), Message: "portal unreachable", Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: op, Kind: KindUnknown, Message: "invalid response from portal", Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func statusError(op string, resp *http.Response) *Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	message := ""
	var payload errorPayload
	if json.Unmarshal(raw, &payload) == nil {
		message = payload.Message
		if message == "" {
			message = payload.Error
		}
	} else {
		message = strings.TrimSpace(string(raw))
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return &Error{
		Op:      op,
		Kind:    KindForStatus(resp.StatusCode),
		Status:  resp.StatusCode,
		Message: message,
	}
}

// newRequest creates a new HTTP request with authentication.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if c.config.HasToken() {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}
