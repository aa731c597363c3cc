// Package estate holds the HTTP clients of the sibling services the advisors call:
// estate search, the finance-model calculator and the news digest.
package estate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/config"
)

// errorBody is the error envelope of the sibling services.
type errorBody struct {
	Error string `json:"error"`
}

// statusError is returned for non-2xx answers.
type statusError struct {
	Service string
	Status  int
	Code    string
	Body    string
}

func (e *statusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s service returned %d: %s", e.Service, e.Status, e.Code)
	}
	return fmt.Sprintf("%s service returned %d: %s", e.Service, e.Status, e.Body)
}

type baseClient struct {
	service string
	baseURL string
	http    *http.Client
}

func newBaseClient(service, baseURL string, cfg config.EstateConfig) baseClient {
	return baseClient{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: cfg.GetOutboundTimeout()},
	}
}

func (c baseClient) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", c.service, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c baseClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c baseClient) do(req *http.Request, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("%s service url is not configured", c.service)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", c.service, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", c.service, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		return &statusError{Service: c.service, Status: resp.StatusCode, Code: eb.Error, Body: strings.TrimSpace(string(data))}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.service, err)
	}
	return nil
}
