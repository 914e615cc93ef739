package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicconnect.org/internal/auth"
	"civicconnect.org/internal/report"
	"civicconnect.org/internal/stream"
)

type fakeBackend struct {
	mu        sync.Mutex
	rows      []report.Report
	byID      map[string]report.Report
	listErr   error
	insertErr error
	updateErr error
	lists     int
	drafts    []report.Draft
	updates   []report.StatusUpdate
	changes   chan report.Change
}

func newFakeBackend(rows ...report.Report) *fakeBackend {
	return &fakeBackend{rows: rows, byID: map[string]report.Report{}, changes: make(chan report.Change, 8)}
}

func (f *fakeBackend) ListReports(ctx context.Context) ([]report.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]report.Report(nil), f.rows...), nil
}

func (f *fakeBackend) GetReport(ctx context.Context, id string) (report.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.byID[id]
	if !ok {
		return report.Report{}, report.ErrNotFound
	}
	return row, nil
}

func (f *fakeBackend) InsertReport(ctx context.Context, d report.Draft) (report.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, d)
	if f.insertErr != nil {
		return report.Report{}, f.insertErr
	}
	row := report.Report{ID: "new", Title: d.Title, Category: d.Category, UserID: d.UserID, IsAnonymous: d.IsAnonymous, CreatedAt: time.Now()}
	f.rows = append([]report.Report{row}, f.rows...)
	return row, nil
}

func (f *fakeBackend) UpdateStatus(ctx context.Context, id string, u report.StatusUpdate) (report.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, u)
	if f.updateErr != nil {
		return report.Report{}, f.updateErr
	}
	return report.Report{ID: id, Status: u.Status}, nil
}

func (f *fakeBackend) Subscribe(ctx context.Context) (<-chan report.Change, error) {
	out := make(chan report.Change)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case c := <-f.changes:
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (f *fakeBackend) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

type recordingNotifier struct {
	mu   sync.Mutex
	ok   []string
	errs []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	n.ok = append(n.ok, msg)
	n.mu.Unlock()
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	n.errs = append(n.errs, msg)
	n.mu.Unlock()
}

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func row(id string, age time.Duration) report.Report {
	return report.Report{ID: id, Title: id, Category: report.CategoryOther, Status: report.StatusSubmitted, CreatedAt: base.Add(-age)}
}

func ids(rows []report.Report) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestFetchOrdersNewestFirst(t *testing.T) {
	fb := newFakeBackend(row("old", 2*time.Hour), row("new", 0), row("mid", time.Hour))
	repo := New(fb, nil)

	require.NoError(t, repo.Fetch(context.Background()))
	assert.Equal(t, []string{"new", "mid", "old"}, ids(repo.Reports()))
	assert.False(t, repo.Loading())
}

func TestFetchFailureKeepsPreviousList(t *testing.T) {
	fb := newFakeBackend(row("a", 0))
	n := &recordingNotifier{}
	repo := New(fb, nil, WithNotifier(n))
	require.NoError(t, repo.Fetch(context.Background()))

	fb.listErr = errors.New("network down")
	err := repo.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, ids(repo.Reports()))
	assert.Equal(t, []string{MsgLoadFailed}, n.errs)
	assert.False(t, repo.Loading())
}

func TestCreateAttributesOwner(t *testing.T) {
	fb := newFakeBackend()
	n := &recordingNotifier{}
	session := auth.NewSession()
	session.Begin(auth.Identity{ID: "citizen"}, "token")
	repo := New(fb, session, WithNotifier(n))
	ctx := context.Background()

	_, err := repo.Create(ctx, report.Draft{Title: "Leak", Category: report.CategoryWater, UserID: report.StringPtr("spoofed")})
	require.NoError(t, err)
	_, err = repo.Create(ctx, report.Draft{Category: report.CategoryCorruption, IsAnonymous: true})
	require.NoError(t, err)

	require.Len(t, fb.drafts, 2)
	require.NotNil(t, fb.drafts[0].UserID)
	assert.Equal(t, "citizen", *fb.drafts[0].UserID)
	assert.Nil(t, fb.drafts[1].UserID)
	assert.Equal(t, []string{MsgSubmitted, MsgSubmitted}, n.ok)
	assert.Equal(t, 2, fb.listCount(), "every successful create refetches")
}

func TestCreateSignedOutIsUnowned(t *testing.T) {
	fb := newFakeBackend()
	repo := New(fb, auth.NewSession())
	_, err := repo.Create(context.Background(), report.Draft{Category: report.CategoryOther})
	require.NoError(t, err)
	assert.Nil(t, fb.drafts[0].UserID)
}

func TestCreateFailureReturnsError(t *testing.T) {
	fb := newFakeBackend()
	fb.insertErr = errors.New("rejected")
	n := &recordingNotifier{}
	repo := New(fb, nil, WithNotifier(n))

	_, err := repo.Create(context.Background(), report.Draft{Category: report.CategoryOther})
	require.ErrorIs(t, err, fb.insertErr)
	assert.Equal(t, []string{MsgSubmitFailed}, n.errs)
	assert.Empty(t, n.ok)
	assert.Zero(t, fb.listCount())
}

func TestUpdateStatusNotifies(t *testing.T) {
	fb := newFakeBackend(row("r1", 0))
	n := &recordingNotifier{}
	repo := New(fb, nil, WithNotifier(n))
	ctx := context.Background()

	_, err := repo.UpdateStatus(ctx, "r1", report.StatusInProgress, report.StringPtr("maria"))
	require.NoError(t, err)
	require.Len(t, fb.updates, 1)
	assert.Equal(t, report.StatusInProgress, fb.updates[0].Status)
	assert.Equal(t, "maria", *fb.updates[0].AssigneeID)
	assert.Equal(t, []string{MsgStatusUpdated}, n.ok)

	fb.updateErr = errors.New("forbidden")
	_, err = repo.UpdateStatus(ctx, "r1", report.StatusClosed, nil)
	require.Error(t, err)
	assert.Equal(t, []string{MsgUpdateFailed}, n.errs)
}

func TestMergeDeltas(t *testing.T) {
	fb := newFakeBackend(row("b", time.Hour), row("a", 2*time.Hour))
	repo := New(fb, nil)
	require.NoError(t, repo.Start(context.Background()))
	defer repo.Close()
	require.Equal(t, []string{"b", "a"}, ids(repo.Reports()))
	lists := fb.listCount()

	fresh := row("c", 0)
	fb.changes <- report.Change{Op: report.OpInsert, ID: "c", Report: &fresh}
	require.Eventually(t, func() bool { return len(repo.Reports()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"c", "b", "a"}, ids(repo.Reports()))

	updated := row("a", 2*time.Hour)
	updated.Status = report.StatusResolved
	fb.changes <- report.Change{Op: report.OpUpdate, ID: "a", Report: &updated}
	require.Eventually(t, func() bool { return repo.Reports()[2].Status == report.StatusResolved }, time.Second, 5*time.Millisecond)

	fb.changes <- report.Change{Op: report.OpDelete, ID: "b"}
	require.Eventually(t, func() bool { return len(repo.Reports()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"c", "a"}, ids(repo.Reports()))

	fb.mu.Lock()
	fb.byID["d"] = row("d", 30*time.Minute)
	fb.mu.Unlock()
	fb.changes <- report.Change{Op: report.OpUpdate, ID: "d"}
	require.Eventually(t, func() bool { return len(repo.Reports()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"c", "d", "a"}, ids(repo.Reports()))

	assert.Equal(t, lists, fb.listCount(), "deltas must not refetch")

	fb.changes <- report.Change{Op: report.OpUpdate}
	require.Eventually(t, func() bool { return fb.listCount() == lists+1 }, time.Second, 5*time.Millisecond)
}

func TestFullRefetchPolicy(t *testing.T) {
	fb := newFakeBackend(row("a", 0))
	repo := New(fb, nil, WithPolicy(SyncFullRefetch))
	require.NoError(t, repo.Start(context.Background()))
	defer repo.Close()
	lists := fb.listCount()

	fresh := row("b", 0)
	fb.changes <- report.Change{Op: report.OpInsert, ID: "b", Report: &fresh}
	require.Eventually(t, func() bool { return fb.listCount() == lists+1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a"}, ids(repo.Reports()), "list comes from the backend, not the event")
}

func TestStartTwiceAndClose(t *testing.T) {
	fb := newFakeBackend()
	repo := New(fb, nil)
	require.NoError(t, repo.Start(context.Background()))
	require.ErrorIs(t, repo.Start(context.Background()), ErrStarted)
	repo.Close()
	repo.Close()
	require.NoError(t, repo.Start(context.Background()))
	repo.Close()
}

func TestInstancesAreIndependent(t *testing.T) {
	fb := newFakeBackend(row("a", 0))
	one := New(fb, nil)
	two := New(fb, nil)
	require.NoError(t, one.Fetch(context.Background()))
	assert.Len(t, one.Reports(), 1)
	assert.Empty(t, two.Reports())
}

func TestLocalBackendStaysInSync(t *testing.T) {
	hub := stream.New()
	store := report.NewInMemory(report.WithChangeHook(hub.Publish))
	var updates sync.WaitGroup
	repo := New(Local{Store: store, Hub: hub}, nil)
	require.NoError(t, repo.Start(context.Background()))
	defer repo.Close()

	updates.Add(1)
	var once sync.Once
	repo.OnUpdate(func(rows []report.Report) {
		if len(rows) == 1 {
			once.Do(updates.Done)
		}
	})

	created, err := store.Insert(context.Background(), report.Draft{Category: report.CategoryTraffic})
	require.NoError(t, err)
	updates.Wait()
	assert.Equal(t, created.ID, repo.Reports()[0].ID)

	_, err = repo.UpdateStatus(context.Background(), created.ID, report.StatusAcknowledged, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		rows := repo.Reports()
		return len(rows) == 1 && rows[0].Status == report.StatusAcknowledged
	}, time.Second, 5*time.Millisecond)
}

func TestParseSyncPolicy(t *testing.T) {
	p, err := ParseSyncPolicy("")
	require.NoError(t, err)
	assert.Equal(t, SyncMergeDeltas, p)
	p, err = ParseSyncPolicy("full_refetch")
	require.NoError(t, err)
	assert.Equal(t, SyncFullRefetch, p)
	_, err = ParseSyncPolicy("sometimes")
	assert.Error(t, err)
}
