package app

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/require"

	actx "go.hackfix.me/dbshift/app/context"
	"go.hackfix.me/dbshift/provider"
)

var timeNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func timeNowFn() time.Time {
	return timeNow
}

type testApp struct {
	*App
	stdout, stderr *safeBuffer
	env            *mockEnv
	fs             vfs.FileSystem
	// dsn is the connection string of the in-memory test database.
	dsn string
	// db is a separate connection to the test database. It keeps the
	// in-memory database alive between commands.
	db *provider.Provider
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	// A unique name per app, to avoid clashing of in-memory SQLite DBs.
	rndName := make([]byte, 12)
	_, err := rand.Read(rndName)
	require.NoError(t, err)
	// Not using just :memory: to avoid 'no such table' issue.
	// See https://github.com/mattn/go-sqlite3#faq
	dsn := fmt.Sprintf("file:dbshift-%x?mode=memory&cache=shared", rndName)

	db, _, err := provider.DefaultRegistry().Resolve(t.Context(), "sqlite", dsn,
		provider.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var (
		stdout, stderr = newSafeBuffer(), newSafeBuffer()
		env            = &mockEnv{env: map[string]string{}}
		fs             = memoryfs.New()
	)
	opts := []Option{
		WithTimeNow(timeNowFn),
		WithEnv(env),
		WithContext(t.Context()),
		WithFDs(stdout, stderr),
		WithFS(fs),
		WithLogger(false),
	}
	app, err := New("dbshift", "/config.json", opts...)
	require.NoError(t, err)

	return &testApp{
		App: app, stdout: stdout, stderr: stderr,
		env: env, fs: fs, dsn: dsn, db: db,
	}
}

// Run runs the app with the given arguments. The output of previous runs is
// discarded.
func (ta *testApp) Run(args ...string) error {
	ta.stdout.Reset()
	ta.stderr.Reset()
	return ta.App.Run(args)
}

// writeFiles writes files with the given content to dir.
func (ta *testApp) writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, ta.fs.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, vfs.WriteFile(ta.fs, vfs.Join(ta.fs, dir, name), []byte(content), 0o644))
	}
}

func (ta *testApp) tableExists(t *testing.T, table string) bool {
	t.Helper()
	exists, err := ta.db.TableExists(context.Background(), table)
	require.NoError(t, err)
	return exists
}

type mockEnv struct {
	mx  sync.RWMutex
	env map[string]string
}

var _ actx.Environment = (*mockEnv)(nil)

func (me *mockEnv) Get(key string) string {
	me.mx.RLock()
	defer me.mx.RUnlock()
	return me.env[key]
}

func (me *mockEnv) Set(key, val string) error {
	me.mx.Lock()
	defer me.mx.Unlock()
	me.env[key] = val
	return nil
}

// safeBuffer is a thread-safe buffer.
type safeBuffer struct {
	mx  sync.RWMutex
	buf *bytes.Buffer
}

func newSafeBuffer() *safeBuffer {
	return &safeBuffer{buf: &bytes.Buffer{}}
}

func (b *safeBuffer) Write(p []byte) (n int, err error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) Reset() {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.buf.Reset()
}

func (b *safeBuffer) String() string {
	b.mx.RLock()
	defer b.mx.RUnlock()
	return b.buf.String()
}
