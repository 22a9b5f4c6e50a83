package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client speaks the sync wire protocol: JSON bodies, bearer auth, and an
// {"error": "..."} body on non-2xx responses.
type Client struct {
	endpoint string
	http     *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{},
	}
}

func (c *Client) Send(ctx context.Context, token string, item Item) error {
	method, url, err := c.route(item)
	if err != nil {
		return err
	}

	var body io.Reader
	if method != http.MethodDelete {
		body = bytes.NewReader(item.Payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("remote rejected %s %s: %s", method, url, failureReason(resp))
}

func (c *Client) route(item Item) (method, url string, err error) {
	var collection string
	switch item.Kind {
	case KindActivity:
		collection = "/activities"
	case KindPhoto:
		collection = "/photos"
		if item.Op == OpUpdate {
			return "", "", fmt.Errorf("%w: %s %s", ErrUnsupportedOp, item.Op, item.Kind)
		}
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedOp, item.Kind)
	}

	switch item.Op {
	case OpCreate:
		return http.MethodPost, c.endpoint + collection, nil
	case OpUpdate:
		return http.MethodPut, c.endpoint + collection + "/" + item.EntityID, nil
	case OpDelete:
		return http.MethodDelete, c.endpoint + collection + "/" + item.EntityID, nil
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedOp, item.Op)
	}
}

func failureReason(resp *http.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return body.Error
	}
	return resp.Status
}
