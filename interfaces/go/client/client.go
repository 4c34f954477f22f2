// Package client is a Go client for the network-monitor REST API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	BaseURL string
	HTTP    *resty.Client
}

const (
	requestTimeout = 10 * time.Second
	retryWait      = 100 * time.Millisecond
)

func New(baseURL string) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetRetryCount(2).
		SetRetryWaitTime(retryWait).
		SetHeader("Accept", "application/json")
	// retry only when the server is overloaded
	rc.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err == nil && r.StatusCode() == http.StatusTooManyRequests
	})
	return &Client{BaseURL: baseURL, HTTP: rc}
}

// APIError is the server's error envelope.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("network-monitor: %d %s: %s", e.Status, e.Code, e.Message)
}

type errorBody struct {
	Error APIError `json:"error"`
}

type Session struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	Kind      string    `json:"kind"`
	StartedAt time.Time `json:"startedAt"`
	Requests  int       `json:"requests"`
	Filtered  int       `json:"filtered"`
}

// Request is a recorded request. Fields the server has not seen yet are
// absent from the JSON and decode to zero values.
type Request struct {
	ID                 string `json:"id"`
	StartedMillis      int64  `json:"startedMillis"`
	EndedMillis        int64  `json:"endedMillis"`
	StartedDeltaMillis int64  `json:"startedDeltaMillis"`
	TotalTime          int64  `json:"totalTime"`
	Method             string `json:"method"`
	URL                string `json:"url"`
	MimeType           string `json:"mimeType"`
	Status             int    `json:"status"`
	StatusText         string `json:"statusText"`
	ContentSize        int64  `json:"contentSize"`
	TransferredSize    int64  `json:"transferredSize"`
	IsXHR              bool   `json:"isXHR"`
	FromCache          bool   `json:"fromCache"`
	Category           string `json:"category"`
}

type View struct {
	Filters    []string `json:"filters"`
	URL        string   `json:"url"`
	Sort       string   `json:"sort"`
	Descending bool     `json:"descending"`
}

type Page struct {
	Items []Request `json:"items"`
	Next  string    `json:"next"`
	Total int       `json:"total"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var eb errorBody
	req := c.HTTP.R().SetContext(ctx).SetError(&eb)
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		eb.Error.Status = resp.StatusCode()
		return &eb.Error
	}
	return nil
}

func (c *Client) CreateSession(ctx context.Context, target string) (Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/_api/v1/sessions", map[string]any{"target": target, "kind": "api"}, &s)
	return s, err
}

func (c *Client) ListSessions(ctx context.Context, limit, offset int) ([]Session, int, error) {
	var out struct {
		Items []Session `json:"items"`
		Total int       `json:"total"`
	}
	path := "/_api/v1/sessions?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, 0, err
	}
	return out.Items, out.Total, nil
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/_api/v1/sessions/"+id, nil, nil)
}

// AddRequests sends data items in one batch.
func (c *Client) AddRequests(ctx context.Context, session string, items ...map[string]any) ([]Request, error) {
	var out struct {
		Items []Request `json:"items"`
	}
	err := c.do(ctx, http.MethodPost, "/_api/v1/sessions/"+session+"/requests", items, &out)
	return out.Items, err
}

// UpdateRequest reports whether the server still knew the request.
func (c *Client) UpdateRequest(ctx context.Context, session, id string, data map[string]any) (bool, error) {
	var out struct {
		Applied bool `json:"applied"`
	}
	err := c.do(ctx, http.MethodPatch, "/_api/v1/sessions/"+session+"/requests/"+id, data, &out)
	return out.Applied, err
}

func (c *Client) RemoveRequest(ctx context.Context, session, id string) error {
	return c.do(ctx, http.MethodDelete, "/_api/v1/sessions/"+session+"/requests/"+id, nil, nil)
}

func (c *Client) Reset(ctx context.Context, session string) error {
	return c.do(ctx, http.MethodPost, "/_api/v1/sessions/"+session+"/reset", nil, nil)
}

func (c *Client) ListRequests(ctx context.Context, session, from string, limit int) (Page, error) {
	var p Page
	path := "/_api/v1/sessions/" + session + "/requests?limit=" + strconv.Itoa(limit)
	if from != "" {
		path += "&from=" + from
	}
	err := c.do(ctx, http.MethodGet, path, nil, &p)
	return p, err
}

func (c *Client) SetFilters(ctx context.Context, session string, filters []string, url string) (View, error) {
	var v View
	err := c.do(ctx, http.MethodPut, "/_api/v1/sessions/"+session+"/filters", map[string]any{"filters": filters, "url": url}, &v)
	return v, err
}

func (c *Client) SortBy(ctx context.Context, session, key string, descending bool) (View, error) {
	var v View
	err := c.do(ctx, http.MethodPut, "/_api/v1/sessions/"+session+"/sort", map[string]any{"sort": key, "descending": descending}, &v)
	return v, err
}

// ExportHAR returns the raw HAR document of the session's filtered view.
func (c *Client) ExportHAR(ctx context.Context, session string) ([]byte, error) {
	resp, err := c.HTTP.R().SetContext(ctx).Get("/_api/v1/sessions/" + session + "/har")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &APIError{Status: resp.StatusCode(), Code: http.StatusText(resp.StatusCode())}
	}
	return resp.Body(), nil
}
