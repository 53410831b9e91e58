package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/dharmasatrya/flightquery/internal/credentials"
	"github.com/dharmasatrya/flightquery/internal/quota"
)

const AmadeusName = "amadeus"

// AmadeusClient performs authenticated calls against the Amadeus
// self-service API. Errors carry the provider sentinels.
type AmadeusClient struct {
	BaseURL     string
	Client      *http.Client
	Credentials credentials.Provider
	Quota       quota.Counter
}

type amadeusErrorBody struct {
	Errors []struct {
		Status int    `json:"status"`
		Code   int    `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// Do sends one request. A nil body sends no payload; any other body is
// JSON-encoded, and json.RawMessage is sent verbatim.
func (c *AmadeusClient) Do(ctx context.Context, method, path string, params url.Values, body any) (json.RawMessage, error) {
	if c.Credentials == nil {
		return nil, fmt.Errorf("%w: no credential provider", ErrAuthRequired)
	}
	token, err := c.Credentials.Token(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}

	if c.Quota != nil {
		if err := c.Quota.Take(ctx, AmadeusName); err != nil {
			if errors.Is(err, quota.ErrExhausted) {
				return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
			}
			log.Printf("[amadeus] quota check failed, continuing: %v", err)
		}
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		var data []byte
		if raw, ok := body.(json.RawMessage); ok {
			data = raw
		} else if data, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("%w: encode request: %v", ErrUpstream, err)
		}
		reader = bytes.NewReader(data)
	}

	var req *http.Request
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.amadeus+json, application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost && strings.HasSuffix(path, "/flight-offers") {
		req.Header.Set("X-HTTP-Method-Override", "GET")
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	log.Printf("[amadeus] %s %s", method, path)
	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.Credentials.Invalidate(ctx)
	}
	if resp.StatusCode >= 400 {
		return nil, amadeusStatusError(resp, data)
	}
	return data, nil
}

func amadeusStatusError(resp *http.Response, data []byte) error {
	var body amadeusErrorBody
	if json.Unmarshal(data, &body) != nil || len(body.Errors) == 0 {
		return statusError(resp, data)
	}
	parts := make([]string, 0, len(body.Errors))
	for _, e := range body.Errors {
		msg := e.Title
		if e.Detail != "" {
			msg += ": " + e.Detail
		}
		parts = append(parts, fmt.Sprintf("[%d] %s", e.Code, msg))
	}
	return statusError(resp, []byte(strings.Join(parts, "; ")))
}
