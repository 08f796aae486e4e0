package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"studiod"
)

// apiClient talks to a running daemon over its HTTP control API.
type apiClient struct {
	baseURL string
	hc      *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
	}
}

type lifecycleResp struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (c *apiClient) Status() (map[string]studiod.PublicView, error) {
	resp, err := c.hc.Get(c.baseURL + "/services/status")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	var views map[string]studiod.PublicView
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return views, nil
}

func (c *apiClient) Start(name string) error {
	return c.lifecycle(name, "start")
}

func (c *apiClient) Stop(name string) error {
	return c.lifecycle(name, "stop")
}

func (c *apiClient) lifecycle(name, op string) error {
	url := fmt.Sprintf("%s/services/%s/%s", c.baseURL, name, op)
	resp, err := c.hc.Post(url, "application/json", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	var lr lifecycleResp
	if err := json.Unmarshal(body, &lr); err != nil {
		return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, string(body))
	}
	if !lr.Success {
		return fmt.Errorf("%s %s: %s", op, name, lr.Error)
	}
	return nil
}
