// Package mjmember provides a client for the MJ Member messaging API.
package mjmember

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Target types accepted by Contact.
const (
	TargetAll          = "all"
	TargetFacilitators = "animateurs"
	TargetCoordinators = "coordinateurs"
	TargetIndividual   = "individual"
)

// Client is an MJ Member API client.
type Client struct {
	BaseURL    string
	MemberID   int64
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new client. An empty baseURL falls back to MJMEMBER_URL
// and then to a local server.
func NewClient(baseURL string, memberID int64, apiKey string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("MJMEMBER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &Client{
		BaseURL:    baseURL,
		MemberID:   memberID,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mjmember error %d: %s", e.StatusCode, e.Message)
}

// doRequest performs an HTTP request and decodes the JSON response into out.
func (c *Client) doRequest(method, path string, in, out any, authed bool) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if authed || c.APIKey != "" {
		req.Header.Set("X-MJ-Member", strconv.FormatInt(c.MemberID, 10))
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// Message is a contact message as returned to a reader.
type Message struct {
	ID          string    `json:"id"`
	SenderName  string    `json:"sender_name,omitempty"`
	SenderEmail string    `json:"sender_email,omitempty"`
	MemberID    int64     `json:"member_id,omitempty"`
	TargetType  string    `json:"target_type"`
	TargetRef   int64     `json:"target_ref,omitempty"`
	AssignedTo  int64     `json:"assigned_to,omitempty"`
	Status      string    `json:"status"`
	Subject     string    `json:"subject,omitempty"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
	Read        bool      `json:"read"`
}

// MessagesResponse is the response from listing messages.
type MessagesResponse struct {
	Messages []Message `json:"messages"`
	Count    int       `json:"count"`
}

// ListOptions narrows a message listing.
type ListOptions struct {
	Limit      int
	Status     string
	UnreadOnly bool
	All        bool // moderators only
}

// Messages lists the messages visible to the authenticated member.
func (c *Client) Messages(opts ListOptions) (*MessagesResponse, error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.UnreadOnly {
		q.Set("unread", "true")
	}
	if opts.All {
		q.Set("scope", "all")
	}

	path := "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp MessagesResponse
	if err := c.doRequest("GET", path, nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Message fetches one message.
func (c *Client) Message(id string) (*Message, error) {
	var msg Message
	if err := c.doRequest("GET", "/messages/"+url.PathEscape(id), nil, &msg, true); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkRead marks a message read for the authenticated member.
func (c *Client) MarkRead(id string) error {
	return c.doRequest("POST", "/messages/"+url.PathEscape(id)+"/read", nil, nil, true)
}

// UnreadCount returns the notification bell count.
func (c *Client) UnreadCount() (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.doRequest("GET", "/notifications/unread", nil, &resp, true); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// SetStatus changes a message's status. Moderators only.
func (c *Client) SetStatus(id, status string) (*Message, error) {
	var msg Message
	body := map[string]string{"status": status}
	if err := c.doRequest("PUT", "/messages/"+url.PathEscape(id)+"/status", body, &msg, true); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Assign assigns a message to a member; zero unassigns. Moderators only.
func (c *Client) Assign(id string, memberID int64) (*Message, error) {
	var msg Message
	body := map[string]int64{"member_id": memberID}
	if err := c.doRequest("PUT", "/messages/"+url.PathEscape(id)+"/assign", body, &msg, true); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ContactRequest is the contact form body.
type ContactRequest struct {
	SenderName  string `json:"sender_name,omitempty"`
	SenderEmail string `json:"sender_email,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Body        string `json:"body"`
	TargetType  string `json:"target_type"`
	TargetRef   int64  `json:"target_ref,omitempty"`
}

// ContactResponse is the response from a contact submission.
type ContactResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Contact submits a contact message. Credentials are sent when the client
// has an API key, recording the member as sender.
func (c *Client) Contact(req ContactRequest) (*ContactResponse, error) {
	var resp ContactResponse
	if err := c.doRequest("POST", "/contact", req, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me describes the authenticated member.
type Me struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role"`
	CanModerate bool     `json:"can_moderate"`
	Targets     []string `json:"targets"`
}

// Me returns the authenticated member.
func (c *Client) Me() (*Me, error) {
	var me Me
	if err := c.doRequest("GET", "/me", nil, &me, true); err != nil {
		return nil, err
	}
	return &me, nil
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Health checks the server health.
func (c *Client) Health() (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doRequest("GET", "/health", nil, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}
