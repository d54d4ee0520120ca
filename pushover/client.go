// Copyright (c) 2023 BVK Chaitanya

// Package pushover sends volumebot notifications to the Pushover service.
package pushover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultURL is the pushover messages api endpoint.
var DefaultURL = (&url.URL{
	Scheme: "https",
	Host:   "api.pushover.net",
	Path:   "/1/messages.json",
}).String()

// Title is the notification title shown by the pushover apps.
const Title = "volumebot"

type Client struct {
	keys       Keys
	endpoint   string
	httpClient *http.Client
}

type message struct {
	Token     string `json:"token"`
	User      string `json:"user"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type response struct {
	Status  int      `json:"status"`
	Request string   `json:"request"`
	Errors  []string `json:"errors"`
}

func New(keys *Keys) (*Client, error) {
	if err := keys.Check(); err != nil {
		return nil, err
	}
	c := &Client{
		keys:       *keys,
		endpoint:   DefaultURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	return c, nil
}

func (c *Client) SendMessage(ctx context.Context, at time.Time, msg string) error {
	m := &message{
		Token:     c.keys.ApplicationKey,
		User:      c.keys.UserKey,
		Title:     Title,
		Message:   msg,
		Timestamp: at.Unix(),
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("could not json-encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("could not create post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not perform post request: %w", err)
	}
	defer resp.Body.Close()

	r := new(response)
	if err := json.NewDecoder(resp.Body).Decode(r); err != nil {
		return fmt.Errorf("could not json-decode response for http-status %d: %w", resp.StatusCode, err)
	}
	return r.err(resp.StatusCode)
}

func (r *response) err(httpStatus int) error {
	if r.Status == 1 {
		return nil
	}
	if len(r.Errors) == 0 {
		return fmt.Errorf("message %q was rejected with http-status %d", r.Request, httpStatus)
	}
	return fmt.Errorf("message was rejected with http-status %d: %w", httpStatus, errors.New(r.Errors[0]))
}
