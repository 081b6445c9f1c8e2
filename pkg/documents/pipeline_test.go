package documents

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/anketa/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	cfg := store.Config{Path: filepath.Join(dir, "sessions.db"), MaxOpenConns: 1, BusyTimeoutMs: 5000}
	require.NoError(t, cfg.Validate())

	client, err := store.NewClient(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return store.New(client)
}

type fakeOrchNotifier struct {
	calls chan struct{}
}

func (f *fakeOrchNotifier) OnDocumentContextUpdated(ctx context.Context) {
	f.calls <- struct{}{}
}

func TestPipeline_UploadSavesParsesAnalyzesAndPersists(t *testing.T) {
	st := newTestStore(t)
	sess, err := st.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	baseDir := t.TempDir()
	p := New(baseDir, st, nil)

	notifier := &fakeOrchNotifier{calls: make(chan struct{}, 1)}
	result, err := p.Upload(context.Background(), sess.SessionID, []Upload{
		{Filename: "brief.txt", ContentType: "text/plain", Content: []byte("FlowCorp offers retail consulting services.")},
	}, notifier)
	require.NoError(t, err)

	assert.Equal(t, []string{"brief.txt"}, result.SavedFiles)
	assert.Contains(t, result.Context.ServicesMentioned, "retail")

	persisted, err := st.GetSession(context.Background(), sess.SessionID)
	require.NoError(t, err)
	require.NotNil(t, persisted.DocumentContext)
	assert.Contains(t, persisted.DocumentContext.ServicesMentioned, "retail")

	select {
	case <-notifier.calls:
	case <-time.After(time.Second):
		t.Fatal("expected OnDocumentContextUpdated to be invoked")
	}
}

func TestPipeline_Upload_RejectsTooManyFiles(t *testing.T) {
	st := newTestStore(t)
	sess, err := st.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	p := New(t.TempDir(), st, nil)
	var uploads []Upload
	for i := 0; i < MaxFilesPerSession+1; i++ {
		uploads = append(uploads, Upload{Filename: "f.txt", ContentType: "text/plain", Content: []byte("x")})
	}

	_, err = p.Upload(context.Background(), sess.SessionID, uploads, nil)
	require.Error(t, err)
}

func TestPipeline_Upload_RejectsUnsupportedExtension(t *testing.T) {
	st := newTestStore(t)
	sess, err := st.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	p := New(t.TempDir(), st, nil)
	_, err = p.Upload(context.Background(), sess.SessionID, []Upload{
		{Filename: "payload.exe", ContentType: "application/octet-stream", Content: []byte("x")},
	}, nil)
	require.Error(t, err)
}

func TestPipeline_Upload_RejectsOversizedFile(t *testing.T) {
	st := newTestStore(t)
	sess, err := st.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	p := New(t.TempDir(), st, nil)
	_, err = p.Upload(context.Background(), sess.SessionID, []Upload{
		{Filename: "huge.txt", ContentType: "text/plain", Content: make([]byte, MaxFileSize+1)},
	}, nil)
	require.Error(t, err)
}

func TestSanitizeFilename_StripsDirectoryComponentsAndLeadingDots(t *testing.T) {
	assert.Equal(t, "passwd", sanitizeFilename("../../etc/passwd", 0, ""))
	assert.Equal(t, "upload_0.txt", sanitizeFilename(".hidden", 0, ".txt"))
	assert.Equal(t, "brief.txt", sanitizeFilename("brief.txt", 0, ".txt"))
}

func TestResolveCollision_AppendsCounterOnCollision(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "brief.txt"), []byte("x"), 0o644))

	resolved, err := resolveCollision(dir, "brief.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "brief_1.txt"), resolved)
}

func TestPipeline_Upload_ErrorsWhenNothingParses(t *testing.T) {
	st := newTestStore(t)
	sess, err := st.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	p := New(t.TempDir(), st, nil)
	_, err = p.Upload(context.Background(), sess.SessionID, []Upload{
		{Filename: "empty.txt", ContentType: "text/plain", Content: []byte("")},
	}, nil)
	require.Error(t, err)
}
