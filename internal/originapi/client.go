package originapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Client talks to a Directory (or any server implementing the same
// contract) to resolve, register, and withdraw namespace ownership.
type Client struct {
	baseURL string
	hc      *http.Client
}

// NewClient creates a Client against a directory reachable at baseURL,
// e.g. "http://origin-directory:8080".
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, hc: http.DefaultClient}
}

// GetOrigin resolves the relay URL currently owning namespace. The second
// return value is false if no relay currently owns it.
func (c *Client) GetOrigin(ctx context.Context, namespace string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/origin/"+namespace, nil)
	if err != nil {
		return "", false, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("originapi: get origin: unexpected status %d", resp.StatusCode)
	}
	var origin Origin
	if err := json.NewDecoder(resp.Body).Decode(&origin); err != nil {
		return "", false, err
	}
	return origin.URL, true, nil
}

// SetOrigin registers url as the owner of namespace.
func (c *Client) SetOrigin(ctx context.Context, namespace, url string) error {
	body, err := json.Marshal(Origin{URL: url})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/origin/"+namespace, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("originapi: set origin: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// DeleteOrigin withdraws the ownership record for namespace.
func (c *Client) DeleteOrigin(ctx context.Context, namespace string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/origin/"+namespace, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("originapi: delete origin: unexpected status %d", resp.StatusCode)
	}
	return nil
}
