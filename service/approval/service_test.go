package approval

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/url"

	"github.com/sansecao/spec-workflow-mcp-pro/internal/filelock"
	"github.com/sansecao/spec-workflow-mcp-pro/internal/pathutil"
	"github.com/sansecao/spec-workflow-mcp-pro/model"
	"github.com/sansecao/spec-workflow-mcp-pro/service/content"
	fsapproval "github.com/sansecao/spec-workflow-mcp-pro/service/dao/approval/fs"
	snapdao "github.com/sansecao/spec-workflow-mcp-pro/service/dao/snapshot"
	fssnapshot "github.com/sansecao/spec-workflow-mcp-pro/service/dao/snapshot/fs"
	memsnapshot "github.com/sansecao/spec-workflow-mcp-pro/service/dao/snapshot/memory"
	"github.com/sansecao/spec-workflow-mcp-pro/service/event"
	"github.com/sansecao/spec-workflow-mcp-pro/service/messaging/memory"
)

const designPath = ".spec-workflow/specs/auth/design.md"

type fixture struct {
	root    string
	srv     *Service
	content *content.Service
	queue   *memory.Queue[event.Event[Change]]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := fmt.Sprintf("mem://localhost/project-%s-%d", t.Name(), time.Now().UnixNano())
	docs := content.New(root)
	require.NoError(t, docs.Write(context.Background(), designPath, "A\nB\nC"))
	queue := memory.NewQueue[event.Event[Change]](memory.Config{QueueBuffer: 1000})
	srv := New(
		WithContent(docs),
		WithPublisher(event.NewPublisher[Change](queue)),
	)
	return &fixture{root: root, srv: srv, content: docs, queue: queue}
}

func (f *fixture) create(t *testing.T) *model.Request {
	t.Helper()
	request, err := f.srv.Create(context.Background(), &CreateInput{Title: "Design", FilePath: designPath, CategoryName: "auth"})
	require.NoError(t, err)
	return request
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	request := f.create(t)
	assert.NotEmpty(t, request.ID)
	assert.Equal(t, model.StatusPending, request.Status)
	assert.Equal(t, model.TypeDocument, request.Type)
	assert.Equal(t, model.CategorySpec, request.Category)
	assert.Nil(t, request.RespondedAt)

	versions, err := f.srv.Versions(ctx, request.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, model.TriggerInitial, versions[0].Trigger)
	assert.Equal(t, "A\nB\nC", versions[0].Content)
	assert.Equal(t, 3, versions[0].FileStats.Lines)
	assert.Equal(t, "Design", versions[0].ApprovalTitle)

	assert.Equal(t, 1, f.queue.Size(), "create publishes a change")
}

func TestService_Create_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	testCases := []struct {
		description string
		input       *CreateInput
		expect      error
	}{
		{description: "nil input", input: nil, expect: model.ErrValidation},
		{description: "missing title", input: &CreateInput{FilePath: designPath, CategoryName: "auth"}, expect: model.ErrValidation},
		{description: "missing file path", input: &CreateInput{Title: "x", CategoryName: "auth"}, expect: model.ErrValidation},
		{description: "missing category name", input: &CreateInput{Title: "x", FilePath: designPath}, expect: model.ErrValidation},
		{description: "bad type", input: &CreateInput{Title: "x", FilePath: designPath, CategoryName: "auth", Type: "memo"}, expect: model.ErrValidation},
		{description: "traversal", input: &CreateInput{Title: "x", FilePath: "../../etc/passwd", CategoryName: "auth"}, expect: model.ErrValidation},
		{description: "unreadable artifact", input: &CreateInput{Title: "x", FilePath: "missing.md", CategoryName: "auth"}, expect: model.ErrIOFailure},
	}
	for _, testCase := range testCases {
		_, err := f.srv.Create(ctx, testCase.input)
		assert.True(t, errors.Is(err, testCase.expect), "%s: %v", testCase.description, err)
	}
	list, err := f.srv.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list, "failed creates persist nothing")
}

func TestService_Decide(t *testing.T) {
	testCases := []struct {
		description string
		status      model.Status
		trigger     model.Trigger
	}{
		{description: "approve", status: model.StatusApproved, trigger: model.TriggerApproved},
		{description: "reject", status: model.StatusRejected, trigger: model.TriggerManual},
		{description: "request revision", status: model.StatusNeedsRevision, trigger: model.TriggerRevisionRequested},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			request := f.create(t)

			decided, err := f.srv.Decide(ctx, request.ID, &DecisionInput{
				Status:      testCase.status,
				Response:    "looks " + testCase.description,
				Annotations: "note",
				Comments:    []model.Comment{{Type: model.CommentSelection, SelectedText: "B", Comment: "rename"}},
			})
			require.NoError(t, err)
			assert.Equal(t, testCase.status, decided.Status)
			require.NotNil(t, decided.RespondedAt)
			assert.Equal(t, "note", decided.Annotations)
			require.Len(t, decided.Comments, 1)
			assert.NotNil(t, decided.Comments[0].Timestamp)

			versions, err := f.srv.Versions(ctx, request.ID)
			require.NoError(t, err)
			require.Len(t, versions, 2)
			assert.Equal(t, testCase.trigger, versions[1].Trigger)
			assert.Equal(t, testCase.status, versions[1].Status)
			assert.Len(t, versions[1].Comments, 1)

			_, err = f.srv.Decide(ctx, request.ID, &DecisionInput{Status: model.StatusApproved})
			assert.True(t, errors.Is(err, model.ErrInvalidTransition))
		})
	}
}

func TestService_Decide_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	request := f.create(t)

	_, err := f.srv.Decide(ctx, "approval_missing", &DecisionInput{Status: model.StatusApproved})
	assert.True(t, errors.Is(err, model.ErrNotFound))

	_, err = f.srv.Decide(ctx, request.ID, &DecisionInput{Status: model.StatusPending})
	assert.True(t, errors.Is(err, model.ErrValidation))

	_, err = f.srv.Decide(ctx, request.ID, &DecisionInput{Status: model.StatusApproved, Comments: []model.Comment{{Type: model.CommentSelection, Comment: "x"}}})
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestService_Decide_ArtifactGone(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	docs := content.New(root)
	require.NoError(t, docs.Write(ctx, "doc.md", "v1\n"))
	srv := New(WithContent(docs))
	request, err := srv.Create(ctx, &CreateInput{Title: "Doc", FilePath: "doc.md", CategoryName: "auth"})
	require.NoError(t, err)

	location, err := pathutil.SafeJoin(root, "doc.md")
	require.NoError(t, err)
	require.NoError(t, os.Remove(location))

	_, err = srv.Decide(ctx, request.ID, &DecisionInput{Status: model.StatusApproved})
	assert.True(t, errors.Is(err, model.ErrIOFailure))

	unchanged, err := srv.Get(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, unchanged.Status)
	versions, err := srv.Versions(ctx, request.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	testCases := []struct {
		description string
		status      model.Status
		expect      error
	}{
		{description: "pending", status: model.StatusPending, expect: model.ErrInvalidState},
		{description: "rejected", status: model.StatusRejected, expect: model.ErrInvalidState},
		{description: "needs revision", status: model.StatusNeedsRevision, expect: model.ErrInvalidState},
		{description: "approved", status: model.StatusApproved},
	}
	for _, testCase := range testCases {
		request := f.create(t)
		if testCase.status != model.StatusPending {
			_, err := f.srv.Decide(ctx, request.ID, &DecisionInput{Status: testCase.status})
			require.NoError(t, err)
		}
		deleted, err := f.srv.Delete(ctx, request.ID)
		if testCase.expect != nil {
			assert.True(t, errors.Is(err, testCase.expect), testCase.description)
			assert.False(t, deleted, testCase.description)
			still, getErr := f.srv.Get(ctx, request.ID)
			require.NoError(t, getErr, testCase.description)
			assert.Equal(t, testCase.status, still.Status, testCase.description)
			continue
		}
		require.NoError(t, err, testCase.description)
		assert.True(t, deleted)
		_, err = f.srv.Get(ctx, request.ID)
		assert.True(t, errors.Is(err, model.ErrNotFound))
		_, err = f.srv.Versions(ctx, request.ID)
		assert.True(t, errors.Is(err, model.ErrNotFound))
	}

	_, err := f.srv.Delete(ctx, "approval_missing")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

type failingHistory struct {
	snapdao.Service
}

func (f *failingHistory) DeleteAll(ctx context.Context, scope snapdao.Scope) error {
	return errors.New("disk detached")
}

func TestService_Delete_HistoryFailureKeepsRecord(t *testing.T) {
	ctx := context.Background()
	root := fmt.Sprintf("mem://localhost/project-%s-%d", t.Name(), time.Now().UnixNano())
	docs := content.New(root)
	require.NoError(t, docs.Write(ctx, designPath, "A\n"))
	srv := New(WithContent(docs), WithSnapshotStore(&failingHistory{Service: memsnapshot.New()}))
	request, err := srv.Create(ctx, &CreateInput{Title: "Design", FilePath: designPath, CategoryName: "auth"})
	require.NoError(t, err)
	_, err = srv.Decide(ctx, request.ID, &DecisionInput{Status: model.StatusApproved})
	require.NoError(t, err)

	deleted, err := srv.Delete(ctx, request.ID)
	assert.False(t, deleted)
	assert.True(t, errors.Is(err, model.ErrIOFailure), "%v", err)

	still, err := srv.Get(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, still.Status)
	versions, err := srv.Versions(ctx, request.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 2, "history stays reachable through the record")
}

func TestService_DesignScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	request := f.create(t)

	_, err := f.srv.Decide(ctx, request.ID, &DecisionInput{Status: model.StatusNeedsRevision, Response: "split section 2"})
	require.NoError(t, err)

	report, err := f.srv.Status(ctx, request.ID)
	require.NoError(t, err)
	assert.False(t, report.CanProceed)
	assert.True(t, report.BlockNext)

	_, err = f.srv.Delete(ctx, request.ID)
	assert.True(t, errors.Is(err, model.ErrInvalidState))

	_, err = f.srv.Decide(ctx, request.ID, &DecisionInput{Status: model.StatusApproved})
	assert.True(t, errors.Is(err, model.ErrInvalidTransition))
}

func TestService_Comments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	request := f.create(t)

	_, err := f.srv.AppendComment(ctx, request.ID, model.Comment{Type: model.CommentSelection, SelectedText: "B", Comment: "clarify"})
	require.NoError(t, err)

	versions, err := f.srv.Versions(ctx, request.ID)
	require.NoError(t, err)
	assert.Empty(t, versions[0].Comments, "existing snapshots are immutable")

	snap, err := f.srv.CaptureSnapshot(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Version)
	assert.Equal(t, model.TriggerManual, snap.Trigger)
	require.Len(t, snap.Comments, 1)
	assert.Equal(t, "clarify", snap.Comments[0].Comment)

	_, err = f.srv.AppendComment(ctx, request.ID, model.Comment{Comment: " "})
	assert.True(t, errors.Is(err, model.ErrValidation))

	_, err = f.srv.Decide(ctx, request.ID, &DecisionInput{Status: model.StatusApproved})
	require.NoError(t, err)
	_, err = f.srv.AppendComment(ctx, request.ID, model.Comment{Comment: "late"})
	assert.True(t, errors.Is(err, model.ErrInvalidState))
}

func TestService_SelectionMustQuoteContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	request := f.create(t)

	testCases := []struct {
		description string
		apply       func() error
	}{
		{
			description: "append comment",
			apply: func() error {
				_, err := f.srv.AppendComment(ctx, request.ID, model.Comment{SelectedText: "Z", Comment: "what?"})
				return err
			},
		},
		{
			description: "decision comment",
			apply: func() error {
				_, err := f.srv.Decide(ctx, request.ID, &DecisionInput{
					Status:   model.StatusNeedsRevision,
					Comments: []model.Comment{{Type: model.CommentGeneral, Comment: "ok"}, {Type: model.CommentSelection, SelectedText: "Z", Comment: "what?"}},
				})
				return err
			},
		},
	}
	for _, testCase := range testCases {
		err := testCase.apply()
		assert.True(t, errors.Is(err, model.ErrValidation), "%s: %v", testCase.description, err)
	}
	stored, err := f.srv.Get(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)
	assert.Empty(t, stored.Comments)
	versions, err := f.srv.Versions(ctx, request.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1, "a rejected decision captures nothing")
}

func TestService_StatusResolvesComments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	request := f.create(t)
	_, err := f.srv.Decide(ctx, request.ID, &DecisionInput{
		Status:   model.StatusNeedsRevision,
		Comments: []model.Comment{{Type: model.CommentSelection, SelectedText: "B", Comment: "rename"}},
	})
	require.NoError(t, err)

	report, err := f.srv.Status(ctx, request.ID)
	require.NoError(t, err)
	assert.Zero(t, report.Orphaned)
	assert.Contains(t, report.NextSteps, `  Comment 1 on "B": rename`)

	require.NoError(t, f.content.Write(ctx, designPath, "A\nX\nC"))
	report, err = f.srv.Status(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Orphaned)
	assert.Equal(t, model.CommentGeneral, report.Comments[0].Type)
	assert.Contains(t, report.NextSteps, `  Comment 1 (general): (on "B") rename`)

	require.NoError(t, afs.New().Delete(ctx, url.Join(f.root, designPath)))
	report, err = f.srv.Status(ctx, request.ID)
	require.NoError(t, err, "an unreadable artifact still reports status")
	assert.Equal(t, model.CommentSelection, report.Comments[0].Type)
}

func TestService_ConcurrentComments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	request := f.create(t)

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.srv.AppendComment(ctx, request.ID, model.Comment{Comment: fmt.Sprintf("comment %d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	loaded, err := f.srv.Get(ctx, request.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Comments, writers)
}

func TestService_VersionsStrictlyIncrease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	request := f.create(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.srv.CaptureSnapshot(ctx, request.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	versions, err := f.srv.Versions(ctx, request.ID)
	require.NoError(t, err)
	require.Len(t, versions, 9)
	for i, snap := range versions {
		assert.Equal(t, i+1, snap.Version)
	}
	_, err = f.srv.Version(ctx, request.ID, 42)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestService_Diff(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	request := f.create(t)
	require.NoError(t, f.content.Write(ctx, designPath, "A\nX\nC"))

	result, err := f.srv.Diff(ctx, request.ID, "1", RefCurrent)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Additions)
	assert.Equal(t, 1, result.Deletions)
	require.Len(t, result.Chunks, 1)
	assert.Equal(t, 1, result.Chunks[0].OldStart)
	assert.Equal(t, 3, result.Chunks[0].OldLines)

	same, err := f.srv.Diff(ctx, request.ID, "1", "1")
	require.NoError(t, err)
	assert.True(t, same.IsEmpty())

	defaulted, err := f.srv.Diff(ctx, request.ID, "1", "")
	require.NoError(t, err)
	assert.Equal(t, result, defaulted)

	_, err = f.srv.Diff(ctx, request.ID, "abc", RefCurrent)
	assert.True(t, errors.Is(err, model.ErrValidation))
	_, err = f.srv.Diff(ctx, request.ID, "7", RefCurrent)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestService_ListOrdering(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.create(t)
	time.Sleep(2 * time.Millisecond)
	second := f.create(t)

	list, err := f.srv.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []string{first.ID, second.ID}, []string{list[0].ID, list[1].ID})

	_, err = f.srv.Decide(ctx, first.ID, &DecisionInput{Status: model.StatusApproved})
	require.NoError(t, err)
	pending, err := ListPending(ctx, f.srv)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}

func TestService_FileSystemStores(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	approvalsDir, err := pathutil.ApprovalsDir(root)
	require.NoError(t, err)
	records, err := fsapproval.New(approvalsDir)
	require.NoError(t, err)
	history, err := fssnapshot.New(approvalsDir)
	require.NoError(t, err)
	docs := content.New(root)
	require.NoError(t, docs.Write(ctx, designPath, "A\nB\nC\n"))

	srv := New(WithStore(records), WithSnapshotStore(history), WithContent(docs))
	request, err := srv.Create(ctx, &CreateInput{Title: "Design", FilePath: designPath, CategoryName: "auth"})
	require.NoError(t, err)
	_, err = srv.Decide(ctx, request.ID, &DecisionInput{Status: model.StatusApproved})
	require.NoError(t, err)

	reopened := New(WithStore(records), WithSnapshotStore(history), WithContent(docs))
	loaded, err := reopened.Get(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, loaded.Status)
	versions, err := reopened.Versions(ctx, request.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)

	deleted, err := reopened.Delete(ctx, request.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	list, err := reopened.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_SharedStoreAcrossProcesses(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	approvalsDir, err := pathutil.ApprovalsDir(root)
	require.NoError(t, err)
	docs := content.New(root)
	require.NoError(t, docs.Write(ctx, designPath, "A\nB\nC\n"))

	open := func() *Service {
		records, err := fsapproval.New(approvalsDir)
		require.NoError(t, err)
		history, err := fssnapshot.New(approvalsDir)
		require.NoError(t, err)
		locker, err := filelock.New(filepath.Join(approvalsDir, ".locks"))
		require.NoError(t, err)
		return New(WithStore(records), WithSnapshotStore(history), WithContent(docs), WithLocker(locker))
	}
	instances := []*Service{open(), open()}
	request, err := instances[0].Create(ctx, &CreateInput{Title: "Design", FilePath: designPath, CategoryName: "auth"})
	require.NoError(t, err)

	const rounds = 10
	var wg sync.WaitGroup
	for n, srv := range instances {
		wg.Add(1)
		go func(n int, srv *Service) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				_, err := srv.AppendComment(ctx, request.ID, model.Comment{Comment: fmt.Sprintf("instance %d comment %d", n, i)})
				assert.NoError(t, err)
				_, err = srv.CaptureSnapshot(ctx, request.ID)
				assert.NoError(t, err)
			}
		}(n, srv)
	}
	wg.Wait()

	loaded, err := instances[1].Get(ctx, request.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Comments, len(instances)*rounds, "no comment is lost")
	versions, err := instances[0].Versions(ctx, request.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1+len(instances)*rounds)
	for i, snap := range versions {
		assert.Equal(t, i+1, snap.Version, "versions are never reused")
	}

	list, err := instances[0].List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1, "lock files are not listed as approvals")
}
