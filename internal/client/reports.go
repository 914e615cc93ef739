package client

import (
	"context"
	"net/http"
	"net/url"

	"civicconnect.org/internal/report"
)

type listResponse struct {
	Reports []report.Report `json:"reports"`
	Filter  report.Filter   `json:"filter"`
}

// ListReports returns every report visible to the caller, newest first.
func (c *Client) ListReports(ctx context.Context) ([]report.Report, error) {
	return c.ListFiltered(ctx, report.FilterAll)
}

// ListFiltered applies a quick filter on the server.
func (c *Client) ListFiltered(ctx context.Context, f report.Filter) ([]report.Report, error) {
	var q url.Values
	if f != "" && f != report.FilterAll {
		q = url.Values{"filter": []string{string(f)}}
	}
	var out listResponse
	if err := c.do(ctx, http.MethodGet, "/v1/reports", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Reports, nil
}

func (c *Client) GetReport(ctx context.Context, id string) (report.Report, error) {
	var out report.Report
	err := c.do(ctx, http.MethodGet, "/v1/reports/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// InsertReport submits a draft and returns the stored row.
func (c *Client) InsertReport(ctx context.Context, d report.Draft) (report.Report, error) {
	var out report.Report
	err := c.do(ctx, http.MethodPost, "/v1/reports", nil, d, &out)
	return out, err
}

// UpdateStatus is the admin status/assignee change.
func (c *Client) UpdateStatus(ctx context.Context, id string, u report.StatusUpdate) (report.Report, error) {
	var out report.Report
	err := c.do(ctx, http.MethodPatch, "/v1/reports/"+url.PathEscape(id)+"/status", nil, u, &out)
	return out, err
}

// PatchReport sends an explicit admin patch.
func (c *Client) PatchReport(ctx context.Context, id string, p report.Patch) (report.Report, error) {
	if err := p.Validate(); err != nil {
		return report.Report{}, err
	}
	var out report.Report
	err := c.do(ctx, http.MethodPatch, "/v1/reports/"+url.PathEscape(id), nil, p, &out)
	return out, err
}
