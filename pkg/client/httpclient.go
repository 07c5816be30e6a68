// Package client is a thin HTTP client over the read-only API served by
// pkg/api, grounded on the teacher's pkg/client/http.go.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// HTTPClient talks to a guardian daemon's local REST API over HTTP,
// optionally authenticating with HTTP basic auth when Password is set
// (mirroring --authenticate-api on the daemon side).
type HTTPClient struct {
	RootURL  string
	Password string
}

func non2xx(code int) bool { return code < 200 || code > 299 }

// GetWithResponse performs a GET against call and decodes the JSON body
// into obj. An error is returned if the response status is not 2xx.
func (c *HTTPClient) GetWithResponse(call string, obj interface{}) error {
	resp, err := c.get(call)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(obj)
}

func (c *HTTPClient) get(call string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, "http://"+c.RootURL+call, nil)
	if err != nil {
		return nil, err
	}
	if c.Password != "" {
		req.SetBasicAuth("", c.Password)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("no response from daemon: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, errors.New("API call not recognized: " + call)
	}
	if non2xx(resp.StatusCode) {
		defer resp.Body.Close()
		var apiErr struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			return nil, fmt.Errorf("daemon returned status %d", resp.StatusCode)
		}
		return nil, errors.New(apiErr.Message)
	}
	return resp, nil
}
