package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"civicconnect.org/internal/audit"
	"civicconnect.org/internal/obs"
	"civicconnect.org/internal/report"
)

type listReportsResponse struct {
	Reports []report.Report `json:"reports"`
	Filter  report.Filter   `json:"filter"`
}

// viewerIsStaff reports whether the caller may see staff-only fields.
func viewerIsStaff(r *http.Request) bool {
	p, ok := principal(r)
	return ok && p.Role.Staff()
}

func (a *API) handleListReports(w http.ResponseWriter, r *http.Request) {
	filter, err := report.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := a.reports.List(r.Context())
	if err != nil {
		a.handleReportError(w, r, err)
		return
	}
	rows = filter.Apply(rows, a.now(), a.loc)
	staff := viewerIsStaff(r)
	out := make([]report.Report, len(rows))
	for i, row := range rows {
		out[i] = row.Redacted(staff)
	}
	writeJSON(w, http.StatusOK, listReportsResponse{Reports: out, Filter: filter})
}

func (a *API) handleGetReport(w http.ResponseWriter, r *http.Request) {
	row, err := a.reports.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.handleReportError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row.Redacted(viewerIsStaff(r)))
}

func (a *API) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var d report.Draft
	if err := decodeJSON(w, r, &d); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	d.UserID = nil
	if p, ok := principal(r); ok && p.Identity.ID != "" {
		d.UserID = report.StringPtr(p.Identity.ID)
	}
	row, err := a.reports.Insert(r.Context(), d)
	if err != nil {
		a.handleReportError(w, r, err)
		return
	}
	obs.ReportCreated(string(row.Category))
	_ = audit.LogEvent(r.Context(), "report.created", map[string]any{
		"report_id": row.ID,
		"category":  row.Category,
		"anonymous": row.IsAnonymous,
	})
	w.Header().Set("Location", "/v1/reports/"+row.ID)
	writeJSON(w, http.StatusCreated, row.Redacted(viewerIsStaff(r)))
}

func (a *API) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req report.StatusUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	a.applyPatch(w, r, req.Patch(), "report.status_updated")
}

func (a *API) handlePatchReport(w http.ResponseWriter, r *http.Request) {
	p, err := report.DecodePatch(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	a.applyPatch(w, r, p, "report.patched")
}

func (a *API) applyPatch(w http.ResponseWriter, r *http.Request, p report.Patch, event string) {
	id := chi.URLParam(r, "id")
	row, err := a.reports.Update(r.Context(), id, p)
	if err != nil {
		a.handleReportError(w, r, err)
		return
	}
	fields := map[string]any{"report_id": row.ID}
	if p.Status != nil {
		obs.ReportStatusChanged(string(*p.Status))
		fields["status"] = *p.Status
	}
	if p.AssigneeID != nil {
		fields["assignee_id"] = *p.AssigneeID
	}
	_ = audit.LogEvent(r.Context(), event, fields)
	writeJSON(w, http.StatusOK, row.Redacted(true))
}
