package app

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mandelsoft/vfs/pkg/memoryfs"

	"go.hackfix.me/curfew/app/config"
	actx "go.hackfix.me/curfew/app/context"
	"go.hackfix.me/curfew/db"
	"go.hackfix.me/curfew/gateway/mock"
)

var timeNow = time.Date(2026, time.October, 19, 7, 30, 0, 0, time.UTC)

func timeNowFn() time.Time {
	return timeNow
}

// testApp is an App wired to an in-memory router, history DB and filesystem.
type testApp struct {
	*App
	stdout, stderr *output
	env            *mockEnv
	router         *mock.Router
	db             *db.DB
}

func newTestApp(ctx context.Context, cfg *config.Config) (*testApp, error) {
	// Shared-cache in-memory DBs are global to the process, so each app needs
	// its own name.
	rnd := make([]byte, 12)
	if _, err := rand.Read(rnd); err != nil {
		return nil, err
	}
	d, err := db.Open(fmt.Sprintf("file:curfew-%x?mode=memory&cache=shared", rnd), timeNowFn)
	if err != nil {
		return nil, err
	}
	if err = d.Init(ctx, "v0.0.0", slog.New(slog.DiscardHandler)); err != nil {
		return nil, err
	}

	ta := &testApp{
		stdout: newOutput(),
		stderr: newOutput(),
		env:    &mockEnv{env: map[string]string{}},
		router: mock.New(),
		db:     d,
	}

	opts := []Option{
		WithTimeNow(timeNowFn),
		WithEnv(ta.env),
		WithDB(d),
		WithGateway(ta.router),
		WithContext(ctx),
		WithFDs(strings.NewReader(""), ta.stdout, ta.stderr),
		WithFS(memoryfs.New()),
		WithLogger(false, false),
	}
	if cfg != nil {
		opts = append(opts, WithConfig(cfg))
	}
	if ta.App, err = New("curfew", "/config.json", "/data", opts...); err != nil {
		return nil, err
	}

	return ta, nil
}

// Run executes a command. The output it produced is then available via
// stdout.String() and stderr.String().
func (ta *testApp) Run(args ...string) error {
	err := ta.App.Run(args)
	ta.stdout.commit()
	ta.stderr.commit()

	return err
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

// output captures what a command writes. Writes go to a pending buffer that
// becomes visible through String once the command finishes, while waitFor can
// observe pending writes of commands that are still running.
type output struct {
	mx      sync.Mutex
	pending bytes.Buffer
	last    string
	written chan struct{} // closed and replaced on every write
}

func newOutput() *output {
	return &output{written: make(chan struct{})}
}

func (o *output) Write(p []byte) (int, error) {
	o.mx.Lock()
	defer o.mx.Unlock()
	n, err := o.pending.Write(p)
	close(o.written)
	o.written = make(chan struct{})
	return n, err
}

func (o *output) commit() {
	o.mx.Lock()
	defer o.mx.Unlock()
	o.last = o.pending.String()
	o.pending.Reset()
}

// String returns the output of the last command.
func (o *output) String() string {
	o.mx.Lock()
	defer o.mx.Unlock()
	return o.last
}

// waitFor blocks until the pending output matches rxPat, and returns the
// submatch at index group.
func (o *output) waitFor(ctx context.Context, rxPat string, group int) (string, error) {
	rx := regexp.MustCompile(rxPat)
	for {
		o.mx.Lock()
		match := rx.FindStringSubmatch(o.pending.String())
		written := o.written
		o.mx.Unlock()

		if len(match) > group {
			return match[group], nil
		}

		select {
		case <-written:
		case <-ctx.Done():
			return "", fmt.Errorf("no output matching %q: %w", rxPat, ctx.Err())
		}
	}
}

// newTestContext returns a context that times out after timeout, and an
// assertion handler that cancels the context and stops the test when an
// assertion fails, instead of waiting for the timeout.
func newTestContext(t *testing.T, timeout time.Duration) (
	ctx context.Context, cancelCtx func(), assertHandler func(bool),
) {
	ctx, cancelCtx = context.WithTimeout(t.Context(), timeout)
	assertHandler = func(success bool) {
		if !success {
			cancelCtx()
			t.FailNow()
		}
	}

	return
}
