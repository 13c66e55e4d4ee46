// Package client is a Go client for the dispatch HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apidispatch "github.com/kilianp07/microgrid-dispatch/api/dispatch"
	"github.com/kilianp07/microgrid-dispatch/auth"
	coredispatch "github.com/kilianp07/microgrid-dispatch/core/dispatch"
	"github.com/kilianp07/microgrid-dispatch/core/firelog"
	"github.com/kilianp07/microgrid-dispatch/core/model"
)

// Error is a non-2xx API response.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %d %s", e.StatusCode, e.Message)
}

// Unwrap lets errors.Is match dispatch.ErrNotFound on 404 responses.
func (e *Error) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return coredispatch.ErrNotFound
	}
	return nil
}

// Client calls a remote dispatch API. It satisfies api/dispatch.Service.
type Client struct {
	base string
	http *http.Client
	auth auth.Authenticator
}

var _ apidispatch.Service = (*Client)(nil)

// New returns a client for the API at baseURL. A nil authenticator sends
// no credentials and a nil httpClient uses a 30 second timeout.
func New(baseURL string, a auth.Authenticator, httpClient *http.Client) *Client {
	if a == nil {
		a = auth.StaticToken("")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: httpClient, auth: a}
}

func dispatchesPath(microgridID uint64) string {
	return "/api/microgrids/" + strconv.FormatUint(microgridID, 10) + "/dispatches"
}

func dispatchPath(microgridID, dispatchID uint64) string {
	return dispatchesPath(microgridID) + "/" + strconv.FormatUint(dispatchID, 10)
}

func (c *Client) List(ctx context.Context, microgridID uint64, f model.DispatchFilter) ([]model.DispatchDetail, error) {
	var out []model.DispatchDetail
	err := c.do(ctx, http.MethodGet, dispatchesPath(microgridID), filterQuery(f), nil, &out)
	return out, err
}

func (c *Client) Create(ctx context.Context, microgridID uint64, d model.Dispatch) (model.DispatchDetail, error) {
	var out model.DispatchDetail
	err := c.do(ctx, http.MethodPost, dispatchesPath(microgridID), nil, d, &out)
	return out, err
}

func (c *Client) Get(ctx context.Context, microgridID, dispatchID uint64) (model.DispatchDetail, error) {
	var out model.DispatchDetail
	err := c.do(ctx, http.MethodGet, dispatchPath(microgridID, dispatchID), nil, nil, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, microgridID, dispatchID uint64, mask []string, u model.DispatchUpdate) (model.DispatchDetail, error) {
	var out model.DispatchDetail
	body := apidispatch.UpdateRequest{UpdateMask: mask, Update: u}
	err := c.do(ctx, http.MethodPatch, dispatchPath(microgridID, dispatchID), nil, body, &out)
	return out, err
}

func (c *Client) Delete(ctx context.Context, microgridID, dispatchID uint64) error {
	return c.do(ctx, http.MethodDelete, dispatchPath(microgridID, dispatchID), nil, nil, nil)
}

func (c *Client) Occurrences(ctx context.Context, microgridID, dispatchID uint64, from time.Time, limit int) ([]time.Time, error) {
	q := url.Values{}
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("limit", strconv.Itoa(limit))
	var out apidispatch.OccurrencesResponse
	if err := c.do(ctx, http.MethodGet, dispatchPath(microgridID, dispatchID)+"/occurrences", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Occurrences, nil
}

// Firings queries the firing log.
func (c *Client) Firings(ctx context.Context, lq firelog.LogQuery) ([]firelog.LogRecord, error) {
	q := url.Values{}
	if !lq.Start.IsZero() {
		q.Set("start", lq.Start.UTC().Format(time.RFC3339))
	}
	if !lq.End.IsZero() {
		q.Set("end", lq.End.UTC().Format(time.RFC3339))
	}
	if lq.MicrogridID != 0 {
		q.Set("microgrid_id", strconv.FormatUint(lq.MicrogridID, 10))
	}
	if lq.DispatchID != 0 {
		q.Set("dispatch_id", strconv.FormatUint(lq.DispatchID, 10))
	}
	if lq.Type != "" {
		q.Set("type", lq.Type)
	}
	if lq.Limit > 0 {
		q.Set("limit", strconv.Itoa(lq.Limit))
	}
	var out []firelog.LogRecord
	err := c.do(ctx, http.MethodGet, "/api/firings", q, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.auth.SetAuthHeader(req); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &Error{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// filterQuery is the inverse of the server side query parsing.
func filterQuery(f model.DispatchFilter) url.Values {
	q := url.Values{}
	for _, sel := range f.Selectors {
		switch s := sel.(type) {
		case model.ComponentIDs:
			ids := make([]string, len(s))
			for i, id := range s {
				ids[i] = strconv.FormatUint(id, 10)
			}
			q.Add("component_ids", strings.Join(ids, ","))
		case model.ComponentCategory:
			q.Add("component_category", s.String())
		}
	}
	if ti := f.TimeInterval; ti != nil {
		for name, v := range map[string]model.Optional[time.Time]{
			"start_from": ti.StartFrom, "start_to": ti.StartTo,
			"end_from": ti.EndFrom, "end_to": ti.EndTo,
		} {
			if t, ok := v.Get(); ok {
				q.Set(name, t.UTC().Format(time.RFC3339))
			}
		}
	}
	if v, ok := f.IsActive.Get(); ok {
		q.Set("is_active", strconv.FormatBool(v))
	}
	if v, ok := f.IsDryRun.Get(); ok {
		q.Set("is_dry_run", strconv.FormatBool(v))
	}
	return q
}
