package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicconnect.org/internal/auth"
	"civicconnect.org/internal/httpapi"
	"civicconnect.org/internal/media"
	"civicconnect.org/internal/report"
	"civicconnect.org/internal/repository"
	"civicconnect.org/internal/stream"
)

type harness struct {
	url      string
	config   string
	accounts *auth.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	accounts := auth.NewMemoryStore()
	tokens, err := auth.NewTokens("cli-secret", time.Hour)
	require.NoError(t, err)
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
	return &harness{
		url:      srv.URL,
		config:   filepath.Join(t.TempDir(), "civic", "config.yaml"),
		accounts: accounts,
	}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CIVIC_TOKEN", "")
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--server", h.url, "--config", h.config))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSignUpPersistsSession(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "auth", "signup", "--email", "ana@example.com", "--password", "secret-pass", "--name", "Ana")
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome, Ana")

	raw, err := os.ReadFile(h.config)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "token:")

	out, err = h.run(t, "auth", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "ana@example.com")
	assert.Contains(t, out, "Citizen")

	out, err = h.run(t, "auth", "signout")
	require.NoError(t, err)
	assert.Contains(t, out, "not signed in")
}

func TestReportAppearsInFeedAndProfile(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "auth", "signup", "--email", "ana@example.com", "--password", "secret-pass", "--name", "Ana")
	require.NoError(t, err)

	out, err := h.run(t, "report", "--category", "pothole", "--title", "Hole on Main St", "--address", "Main St 1")
	require.NoError(t, err)
	assert.Contains(t, out, repository.MsgSubmitted)
	assert.Contains(t, out, "Hole on Main St")

	out, err = h.run(t, "feed")
	require.NoError(t, err)
	assert.Contains(t, out, "Hole on Main St")
	assert.Contains(t, out, "Ana")
	assert.Contains(t, out, "Main St 1")

	out, err = h.run(t, "profile")
	require.NoError(t, err)
	assert.Contains(t, out, "Hole on Main St")
}

func TestReportRequiresSignIn(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "report", "--category", "pothole")
	require.NoError(t, err)
	assert.Contains(t, out, "Sign in required")
}

func TestAdminCommandsAreGuarded(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "auth", "signup", "--email", "ana@example.com", "--password", "secret-pass")
	require.NoError(t, err)

	out, err := h.run(t, "admin", "dashboard")
	require.NoError(t, err)
	assert.Contains(t, out, "Admin access required.")

	_, err = h.run(t, "admin", "status", "missing", "resolved")
	assert.Error(t, err)
}

func TestAdminDashboardListsReports(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "auth", "signup", "--email", "boss@example.com", "--password", "secret-pass", "--name", "Boss")
	require.NoError(t, err)
	u, err := h.accounts.UserByEmail(context.Background(), "boss@example.com")
	require.NoError(t, err)
	require.NoError(t, h.accounts.AssignRole(context.Background(), u.ID, auth.RoleAdmin))

	_, err = h.run(t, "report", "--category", "streetlight", "--title", "Dark corner", "--priority", "critical")
	require.NoError(t, err)

	out, err := h.run(t, "admin", "dashboard", "--filter", "urgent")
	require.NoError(t, err)
	assert.Contains(t, out, "Admin Dashboard: 1 reports")
	assert.Contains(t, out, "Dark corner")

	id := firstReportID(t, out)
	out, err = h.run(t, "admin", "status", id, "in_progress", "--assignee", u.ID)
	require.NoError(t, err)
	assert.Contains(t, out, id)
}

func TestAdminSignInRejectsCitizen(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "auth", "signup", "--email", "ana@example.com", "--password", "secret-pass")
	require.NoError(t, err)
	_, err = h.run(t, "auth", "signout")
	require.NoError(t, err)

	out, err := h.run(t, "auth", "signin", "--admin", "--email", "ana@example.com", "--password", "secret-pass")
	require.Error(t, err)
	assert.Contains(t, out, "Admin access required.")

	out, err = h.run(t, "auth", "signin", "--admin", "--email", "ana@example.com", "--password", "wrong-pass")
	require.Error(t, err)
	assert.Contains(t, out, "Invalid admin credentials")
}

func TestUnknownFilterIsRejected(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "feed", "--filter", "yesterday")
	assert.ErrorIs(t, err, report.ErrInvalidInput)
}

func firstReportID(t *testing.T, dashboard string) string {
	t.Helper()
	lines := strings.Split(dashboard, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "ID ") && i+1 < len(lines) {
			fields := strings.Fields(lines[i+1])
			require.NotEmpty(t, fields)
			return fields[0]
		}
	}
	t.Fatal("no report row in dashboard output")
	return ""
}
