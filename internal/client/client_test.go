package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"civicconnect.org/internal/auth"
	"civicconnect.org/internal/httpapi"
	"civicconnect.org/internal/media"
	"civicconnect.org/internal/report"
	"civicconnect.org/internal/repository"
	"civicconnect.org/internal/stream"
)

type backend struct {
	url      string
	accounts *auth.MemoryStore
	hub      *stream.Hub
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	accounts := auth.NewMemoryStore()
	tokens, err := auth.NewTokens("client-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	svc := auth.NewService(accounts, tokens, auth.NewRoleResolver(accounts, auth.FailOpen, zerolog.Nop()))
	hub := stream.New()

	srv := httptest.NewServer(nil)
	files := media.NewMemory(srv.URL + "/media")
	api := httpapi.New(httpapi.Deps{
		Reports:    report.NewInMemory(report.WithChangeHook(hub.Publish)),
		Auth:       svc,
		Hub:        hub,
		Media:      files,
		MediaFiles: files,
		Logger:     zerolog.Nop(),
		RateBurst:  1000,
		RatePerSec: 1000,
	})
	srv.Config.Handler = api.Handler()
	t.Cleanup(srv.Close)
	return &backend{url: srv.URL, accounts: accounts, hub: hub}
}

func newClient(t *testing.T, b *backend) *Client {
	t.Helper()
	c, err := New(b.url)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"localhost:8080", "ftp://host", "://"} {
		if _, err := New(raw); err == nil {
			t.Fatalf("New(%q) expected error", raw)
		}
	}
}

func TestAPIErrorMapsSentinels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  *APIError
		want error
	}{
		{"bad request report", &APIError{Status: http.StatusBadRequest}, report.ErrInvalidInput},
		{"bad request auth", &APIError{Status: http.StatusBadRequest}, auth.ErrInvalidInput},
		{"not found", &APIError{Status: http.StatusNotFound}, report.ErrNotFound},
		{"role not found", &APIError{Status: http.StatusNotFound}, auth.ErrNotFound},
		{"unauthorized", &APIError{Status: http.StatusUnauthorized}, auth.ErrUnauthorized},
		{"credentials", &APIError{Status: http.StatusUnauthorized, Message: "Invalid login credentials"}, auth.ErrInvalidCredentials},
		{"forbidden", &APIError{Status: http.StatusForbidden}, auth.ErrForbidden},
		{"conflict", &APIError{Status: http.StatusConflict}, auth.ErrConflict},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if !errors.Is(tc.err, tc.want) {
				t.Fatalf("errors.Is(%v, %v) = false", tc.err, tc.want)
			}
		})
	}
	if errors.Is(&APIError{Status: http.StatusUnauthorized, Message: "unauthorized"}, auth.ErrInvalidCredentials) {
		t.Fatal("plain 401 must not read as invalid credentials")
	}
}

func TestReportRoundTrip(t *testing.T) {
	b := newBackend(t)
	c := newClient(t, b)
	ctx := context.Background()

	grant, err := c.SignUp(ctx, "ada@example.com", "hunter22", "Ada")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if !c.Session().SignedIn() || c.Session().Identity().ID != grant.Identity.ID {
		t.Fatal("session not started")
	}

	created, err := c.InsertReport(ctx, report.Draft{Title: "Leak", Category: report.CategoryWater})
	if err != nil {
		t.Fatalf("InsertReport: %v", err)
	}
	if !created.OwnedBy(grant.Identity.ID) {
		t.Fatalf("owner not set: %+v", created)
	}

	rows, err := c.ListReports(ctx)
	if err != nil || len(rows) != 1 {
		t.Fatalf("ListReports: %v %d", err, len(rows))
	}
	if _, err := c.GetReport(ctx, "missing"); !errors.Is(err, report.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, err = c.UpdateStatus(ctx, created.ID, report.StatusUpdate{Status: report.StatusResolved})
	if !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected forbidden for citizen, got %v", err)
	}

	if err := b.accounts.AssignRole(ctx, grant.Identity.ID, auth.RoleAdmin); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	updated, err := c.UpdateStatus(ctx, created.ID, report.StatusUpdate{Status: report.StatusResolved})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.ResolvedAt == nil {
		t.Fatal("expected resolved_at")
	}
	notes := "crew booked"
	patched, err := c.PatchReport(ctx, created.ID, report.Patch{InternalNotes: &notes})
	if err != nil || patched.InternalNotes == nil {
		t.Fatalf("PatchReport: %v %+v", err, patched)
	}
	resolved, err := c.ListFiltered(ctx, report.FilterResolved)
	if err != nil || len(resolved) != 1 {
		t.Fatalf("ListFiltered: %v %d", err, len(resolved))
	}
}

func TestStaffRepositoryKeepsNotesAcrossChanges(t *testing.T) {
	b := newBackend(t)
	c := newClient(t, b)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	grant, err := c.SignUp(ctx, "boss@example.com", "hunter22", "Boss")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if err := b.accounts.AssignRole(ctx, grant.Identity.ID, auth.RoleAdmin); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	created, err := c.InsertReport(ctx, report.Draft{Title: "Leak", Category: report.CategoryWater})
	if err != nil {
		t.Fatalf("InsertReport: %v", err)
	}
	notes := "crew booked"
	if _, err := c.PatchReport(ctx, created.ID, report.Patch{InternalNotes: &notes}); err != nil {
		t.Fatalf("PatchReport: %v", err)
	}

	repo := repository.New(c, c.Session(), repository.WithPolicy(repository.SyncMergeDeltas))
	updates := make(chan []report.Report, 16)
	repo.OnUpdate(func(rows []report.Report) {
		select {
		case updates <- rows:
		default:
		}
	})
	if err := repo.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer repo.Close()
	rows := repo.Reports()
	if len(rows) != 1 || rows[0].InternalNotes == nil {
		t.Fatalf("staff fetch lost notes: %+v", rows)
	}

	if _, err := c.UpdateStatus(ctx, created.ID, report.StatusUpdate{Status: report.StatusAcknowledged}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	for {
		select {
		case rows := <-updates:
			if len(rows) != 1 || rows[0].Status != report.StatusAcknowledged {
				continue
			}
			if rows[0].InternalNotes == nil || *rows[0].InternalNotes != notes {
				t.Fatalf("merged change dropped internal notes: %+v", rows[0])
			}
			return
		case <-ctx.Done():
			t.Fatal("status change never reached the repository")
		}
	}
}

func TestCitizenSubscriptionHidesNotes(t *testing.T) {
	b := newBackend(t)
	staff := newClient(t, b)
	citizen := newClient(t, b)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	grant, err := staff.SignUp(ctx, "boss@example.com", "hunter22", "")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if err := b.accounts.AssignRole(ctx, grant.Identity.ID, auth.RoleAdmin); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if _, err := citizen.SignUp(ctx, "ada@example.com", "hunter22", ""); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	created, err := staff.InsertReport(ctx, report.Draft{Category: report.CategorySafety})
	if err != nil {
		t.Fatalf("InsertReport: %v", err)
	}

	changes, err := citizen.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	notes := "internal only"
	if _, err := staff.PatchReport(ctx, created.ID, report.Patch{InternalNotes: &notes}); err != nil {
		t.Fatalf("PatchReport: %v", err)
	}
	select {
	case ch := <-changes:
		if ch.ID != created.ID || ch.Report == nil {
			t.Fatalf("unexpected change %+v", ch)
		}
		if ch.Report.InternalNotes != nil {
			t.Fatal("citizen received internal notes")
		}
	case <-ctx.Done():
		t.Fatal("change not delivered")
	}
}

func TestAuthCalls(t *testing.T) {
	b := newBackend(t)
	c := newClient(t, b)
	ctx := context.Background()

	if _, err := c.SignIn(ctx, "nobody@example.com", "whatever"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	grant, err := c.SignUp(ctx, "ada@example.com", "hunter22", "Ada")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if _, err := c.SignUp(ctx, "ada@example.com", "hunter22", ""); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	me, err := c.CurrentUser(ctx)
	if err != nil || me.User.ID != grant.Identity.ID || me.Profile == nil || me.Profile.DisplayName != "Ada" {
		t.Fatalf("CurrentUser: %v %+v", err, me)
	}

	if _, err := c.RoleFor(ctx, grant.Identity.ID); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound without assignment, got %v", err)
	}
	resolver := auth.NewRoleResolver(c, auth.FailOpen, zerolog.Nop())
	id := c.Session().Identity()
	if role, err := resolver.Resolve(ctx, id); err != nil || role != auth.RoleUser {
		t.Fatalf("Resolve: %v %q", err, role)
	}
	if _, err := c.RoleFor(ctx, "someone-else"); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected forbidden for foreign id, got %v", err)
	}

	profiles, err := c.Profiles(ctx, []string{grant.Identity.ID})
	if err != nil || profiles[grant.Identity.ID].DisplayName != "Ada" {
		t.Fatalf("Profiles: %v %+v", err, profiles)
	}

	if err := c.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if c.Session().SignedIn() {
		t.Fatal("session still active")
	}
	if _, err := c.CurrentUser(ctx); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected unauthorized after sign out, got %v", err)
	}
}

func TestPutUploadsMedia(t *testing.T) {
	b := newBackend(t)
	c := newClient(t, b)
	ctx := context.Background()
	if _, err := c.SignUp(ctx, "ada@example.com", "hunter22", ""); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	var store media.Storage = c
	url, err := store.Put(ctx, "ignored", "image/jpeg", strings.NewReader("jpeg"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasPrefix(url, b.url+"/media/reports/") || !strings.HasSuffix(url, ".jpeg") {
		t.Fatalf("unexpected url %q", url)
	}
	if _, err := store.Put(ctx, "", "text/plain", strings.NewReader("x")); StatusOf(err) != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %v", err)
	}
}

func TestSubscribeReceivesChanges(t *testing.T) {
	b := newBackend(t)
	c := newClient(t, b)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changes, err := c.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for b.hub.Subscribers() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	created, err := c.InsertReport(ctx, report.Draft{Category: report.CategorySafety, IsAnonymous: true})
	if err != nil {
		t.Fatalf("InsertReport: %v", err)
	}
	select {
	case ch := <-changes:
		if ch.Op != report.OpInsert || ch.ID != created.ID || ch.Report == nil {
			t.Fatalf("unexpected change: %+v", ch)
		}
	case <-ctx.Done():
		t.Fatal("no change received")
	}

	cancel()
	for range changes {
	}
}

func TestHealthCheck(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	gh := httpapi.NewGRPCHealth(srv, httpapi.ReadyProbe{})
	gh.Refresh(context.Background())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	h, err := DialHealth("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialHealth: %v", err)
	}
	defer h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	status, err := h.Check(ctx, "")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if status != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("unexpected status %v", status)
	}
}
