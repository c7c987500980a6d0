package persistence

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-persistence/pkg/adapter"
	"github.com/redbco/redb-persistence/pkg/async"
	"github.com/redbco/redb-persistence/pkg/uri"
)

type recordingFactory struct {
	mu    sync.Mutex
	calls int
	url   string
	props adapter.Properties
	err   error
}

func (f *recordingFactory) Connect(ctx context.Context, url string, props adapter.Properties) (adapter.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.url = url
	f.props = props
	return nil, f.err
}

func (f *recordingFactory) snapshot() (int, string, adapter.Properties) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.url, f.props
}

type typedFactory struct {
	recordingFactory
	dialect string
}

func (f *typedFactory) Dialect() string { return f.dialect }

type memorySink struct {
	bytes.Buffer
	id      string
	conn    PendingConnection
	aborted bool
}

func (s *memorySink) Commit(ctx context.Context) (Response, error) {
	if _, err := s.conn.Get(ctx); err != nil {
		return Response{}, err
	}
	return Response{AssignedID: s.id}, nil
}

func (s *memorySink) Abort() error {
	s.aborted = true
	return nil
}

type fakeOutput struct {
	calls atomic.Int32
	id    string
	sink  *memorySink
}

func (f *fakeOutput) CreateOutput(ctx context.Context, u uri.URI, opts Options, conn PendingConnection) (OutputSink, error) {
	f.calls.Add(1)
	f.sink = &memorySink{id: f.id, conn: conn}
	return f.sink, nil
}

type fakeInput struct {
	calls   atomic.Int32
	deleted []string
	exists  bool
}

func (f *fakeInput) CreateInput(ctx context.Context, u uri.URI, opts Options, conn PendingConnection) (io.ReadCloser, Response, error) {
	f.calls.Add(1)
	if _, err := conn.Get(ctx); err != nil {
		return nil, Response{}, err
	}
	return io.NopCloser(strings.NewReader(`{"id":"` + u.ID() + `"}`)), Response{}, nil
}

func (f *fakeInput) CreateDeleteRequest(ctx context.Context, u uri.URI, opts Options, conn PendingConnection) (Response, error) {
	f.calls.Add(1)
	if _, err := conn.Get(ctx); err != nil {
		return Response{}, err
	}
	f.deleted = append(f.deleted, u.String())
	return Response{}, nil
}

type checkingInput struct {
	fakeInput
}

func (f *checkingInput) Exists(ctx context.Context, u uri.URI, opts Options, conn PendingConnection) (bool, error) {
	f.calls.Add(1)
	if _, err := conn.Get(ctx); err != nil {
		return false, err
	}
	return f.exists, nil
}

type opRecorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *opRecorder) ObserveOperation(op string, d time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.ops = append(r.ops, op+":"+outcome)
}

func newTestHandler(t *testing.T, factories map[string]adapter.ConnectionFactory, in InputFactory, out OutputFactory, opts ...HandlerOption) *Handler {
	t.Helper()
	exec := async.NewExecutor(async.Options{Workers: 2, Timeout: 5 * time.Second})
	t.Cleanup(exec.Stop)
	return NewHandler(adapter.NewConnectionRegistry(factories), in, out, exec, opts...)
}

func TestCanHandle(t *testing.T) {
	h := newTestHandler(t, nil, nil, nil)

	tests := []struct {
		raw  string
		want bool
	}{
		{"jdbc://db1/orders/items/42", true},
		{"JDBC://db1/orders/items/", true},
		{"Jdbc://db1/orders/items/7?x=1", true},
		{"http://db1/orders/items/42", false},
		{"file:///tmp/orders/items/42", false},
		{"jdbcx://db1/orders/items/42", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, h.CanHandle(uri.MustParse(tt.raw)))
		})
	}

	custom := newTestHandler(t, nil, nil, nil, WithScheme("orders"))
	assert.True(t, custom.CanHandle(uri.MustParse("ORDERS://db1/orders/items/1")))
	assert.False(t, custom.CanHandle(uri.MustParse("jdbc://db1/orders/items/1")))
}

func TestResolveConnectionBuildsURL(t *testing.T) {
	f := &recordingFactory{}
	h := newTestHandler(t, map[string]adapter.ConnectionFactory{"db1": f}, nil, nil)

	pending := h.ResolveConnection(context.Background(), Options{
		OptionName:         "db1",
		OptionDatabaseName: "orders",
		OptionType:         "Derby",
		"user":             "app",
	})
	_, err := pending.Get(context.Background())
	require.NoError(t, err)

	calls, url, props := f.snapshot()
	assert.Equal(t, 1, calls)
	assert.Equal(t, "derby:orders;create=true", url)
	assert.Equal(t, adapter.Properties{"user": "app"}, props)
}

func TestResolveConnectionUnknownName(t *testing.T) {
	f := &recordingFactory{}
	h := newTestHandler(t, map[string]adapter.ConnectionFactory{"db1": f}, nil, nil)

	pending := h.ResolveConnection(context.Background(), Options{
		OptionName:         "db2",
		OptionDatabaseName: "orders",
		OptionType:         "derby",
	})
	_, err := pending.Get(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, adapter.ErrUnknownConnection))

	calls, url, _ := f.snapshot()
	assert.Zero(t, calls)
	assert.Empty(t, url)
}

func TestResolveConnectionMissingOptions(t *testing.T) {
	h := newTestHandler(t, map[string]adapter.ConnectionFactory{"db1": &recordingFactory{}}, nil, nil)

	_, err := h.ResolveConnection(context.Background(), Options{OptionDatabaseName: "orders"}).Get(context.Background())
	assert.ErrorIs(t, err, ErrMissingOption)

	_, err = h.ResolveConnection(context.Background(), Options{OptionName: "db1", OptionDatabaseName: "orders"}).Get(context.Background())
	assert.ErrorIs(t, err, ErrMissingOption)
}

func TestResolveConnectionDialectFromFactory(t *testing.T) {
	f := &typedFactory{dialect: "SQLite"}
	h := newTestHandler(t, map[string]adapter.ConnectionFactory{"local": f}, nil, nil)

	_, err := h.ResolveConnection(context.Background(), Options{OptionName: "local", OptionDatabaseName: "crm"}).Get(context.Background())
	require.NoError(t, err)
	_, url, _ := f.snapshot()
	assert.Equal(t, "sqlite:crm;create=true", url)
}

func TestResolveConnectionPropagatesConnectError(t *testing.T) {
	boom := errors.New("refused")
	h := newTestHandler(t, map[string]adapter.ConnectionFactory{"db1": &recordingFactory{err: boom}}, nil, nil)

	_, err := h.ResolveConnection(context.Background(), Options{
		OptionName: "db1", OptionDatabaseName: "orders", OptionType: "derby",
	}).Get(context.Background())
	assert.Same(t, boom, err)
}

type sharedConn struct {
	adapter.Connection
	closed atomic.Bool
}

func (c *sharedConn) IsConnected() bool { return !c.closed.Load() }
func (c *sharedConn) Close() error      { c.closed.Store(true); return nil }

func TestResolveConnectionCancelKeepsSharedConnection(t *testing.T) {
	shared := &sharedConn{}
	entered := make(chan struct{})
	release := make(chan struct{})
	factory := adapter.ConnectionFactoryFunc(func(ctx context.Context, url string, props adapter.Properties) (adapter.Connection, error) {
		close(entered)
		<-release
		return shared, nil
	})
	exec := async.NewExecutor(async.Options{Workers: 1})
	h := NewHandler(adapter.NewConnectionRegistry(map[string]adapter.ConnectionFactory{"db1": factory}), nil, nil, exec)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	pending := h.ResolveConnection(ctx, Options{
		OptionName: "db1", OptionDatabaseName: "orders", OptionType: "derby",
	})
	<-entered

	_, err := pending.Get(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	exec.Stop()
	require.NoError(t, h.Close())
	assert.True(t, shared.IsConnected(), "a connection owned by the factory must not be closed by a canceled caller")
}

func TestWriteAssignsID(t *testing.T) {
	f := &recordingFactory{}
	out := &fakeOutput{id: "42"}
	h := newTestHandler(t, map[string]adapter.ConnectionFactory{"db1": f}, nil, out)

	u := uri.MustParse("jdbc://db1/orders/items/")
	w, err := h.OpenOutput(context.Background(), u, Options{OptionType: "derby"})
	require.NoError(t, err)

	_, err = w.Write([]byte(`{"sku":"A-1"}`))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, "42", w.URI().ID())
	assert.Equal(t, "jdbc://db1/orders/items/42", w.URI().String())
	assert.Equal(t, "42", w.Response().AssignedID)
	assert.Equal(t, `{"sku":"A-1"}`, out.sink.String())

	_, url, _ := f.snapshot()
	assert.Equal(t, "derby:orders;create=true", url)

	_, err = w.Write([]byte("more"))
	assert.ErrorIs(t, err, ErrWriterClosed)
}

func TestWriteKeepsExistingID(t *testing.T) {
	out := &fakeOutput{id: "99"}
	h := newTestHandler(t, map[string]adapter.ConnectionFactory{"db1": &recordingFactory{}}, nil, out)

	w, err := h.OpenOutput(context.Background(), uri.MustParse("jdbc://db1/orders/items/7"), Options{OptionType: "derby"})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, "7", w.URI().ID())
}

func TestWriteAbort(t *testing.T) {
	out := &fakeOutput{id: "1"}
	h := newTestHandler(t, map[string]adapter.ConnectionFactory{"db1": &recordingFactory{}}, nil, out)

	w, err := h.OpenOutput(context.Background(), uri.MustParse("jdbc://db1/orders/items/"), Options{OptionType: "derby"})
	require.NoError(t, err)
	require.NoError(t, w.Abort())
	assert.True(t, out.sink.aborted)
	require.NoError(t, w.Close())
	assert.False(t, w.URI().HasID())
}

func TestMalformedIdentifiersRejectedSynchronously(t *testing.T) {
	f := &recordingFactory{}
	in := &checkingInput{}
	out := &fakeOutput{}
	h := newTestHandler(t, map[string]adapter.ConnectionFactory{"db1": f}, in, out)
	ctx := context.Background()

	for _, raw := range []string{
		"jdbc://db1/orders/items",
		"jdbc://db1/orders/items/1/extra",
		"http://db1/orders/items/1",
		"jdbc://db1/..%2Fescaped/items/1",
	} {
		u := uri.MustParse(raw)

		_, err := h.OpenOutput(ctx, u, nil)
		assert.ErrorIs(t, err, ErrUnsupportedURI, raw)
		_, err = h.OpenInput(ctx, u, nil)
		assert.ErrorIs(t, err, ErrUnsupportedURI, raw)
		assert.ErrorIs(t, h.Delete(ctx, u, nil), ErrUnsupportedURI, raw)
		_, err = h.Exists(ctx, u, nil)
		assert.ErrorIs(t, err, ErrUnsupportedURI, raw)
	}

	calls, _, _ := f.snapshot()
	assert.Zero(t, calls)
	assert.Zero(t, in.calls.Load())
	assert.Zero(t, out.calls.Load())
}

func TestExistsWithQueryIsFalse(t *testing.T) {
	f := &recordingFactory{}
	in := &checkingInput{fakeInput: fakeInput{exists: true}}
	h := newTestHandler(t, map[string]adapter.ConnectionFactory{"db1": f}, in, nil)

	found, err := h.Exists(context.Background(), uri.MustParse("jdbc://db1/orders/items/1?status=open"), Options{OptionType: "derby"})
	require.NoError(t, err)
	assert.False(t, found)

	calls, _, _ := f.snapshot()
	assert.Zero(t, calls)
	assert.Zero(t, in.calls.Load())
}

func TestExistsDelegatesToChecker(t *testing.T) {
	in := &checkingInput{fakeInput: fakeInput{exists: true}}
	h := newTestHandler(t, map[string]adapter.ConnectionFactory{"db1": &recordingFactory{}}, in, nil)

	found, err := h.Exists(context.Background(), uri.MustParse("jdbc://db1/orders/items/1"), Options{OptionType: "derby"})
	require.NoError(t, err)
	assert.True(t, found)
}

func TestExistsUnsupported(t *testing.T) {
	h := newTestHandler(t, map[string]adapter.ConnectionFactory{"db1": &recordingFactory{}}, &fakeInput{}, nil)

	_, err := h.Exists(context.Background(), uri.MustParse("jdbc://db1/orders/items/1"), nil)
	assert.ErrorIs(t, err, ErrExistsUnsupported)
}

func TestReadAndDeleteDelegate(t *testing.T) {
	in := &fakeInput{}
	h := newTestHandler(t, map[string]adapter.ConnectionFactory{"db1": &recordingFactory{}}, in, nil)
	u := uri.MustParse("jdbc://db1/orders/items/5")

	r, err := h.OpenInput(context.Background(), u, Options{OptionType: "derby"})
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"5"}`, string(body))
	require.NoError(t, r.Close())

	require.NoError(t, h.Delete(context.Background(), u, Options{OptionType: "derby"}))
	assert.Equal(t, []string{u.String()}, in.deleted)
}

func TestUnknownConnectionSurfacesFromFactory(t *testing.T) {
	f := &recordingFactory{}
	in := &fakeInput{}
	h := newTestHandler(t, map[string]adapter.ConnectionFactory{"db1": f}, in, nil)

	_, err := h.OpenInput(context.Background(), uri.MustParse("jdbc://other/orders/items/5"), Options{OptionType: "derby"})
	assert.ErrorIs(t, err, adapter.ErrUnknownConnection)

	calls, _, _ := f.snapshot()
	assert.Zero(t, calls)
}

func TestOperationsAreObserved(t *testing.T) {
	rec := &opRecorder{}
	h := newTestHandler(t, map[string]adapter.ConnectionFactory{"db1": &recordingFactory{}}, &fakeInput{}, &fakeOutput{id: "1"}, WithMetrics(rec))

	w, err := h.OpenOutput(context.Background(), uri.MustParse("jdbc://db1/orders/items/"), Options{OptionType: "derby"})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	_, _ = h.Exists(context.Background(), uri.MustParse("jdbc://db1/orders/items/1"), nil)

	assert.Equal(t, []string{"open_output:ok", "commit:ok", "exists:error"}, rec.ops)
}

func TestResponseApply(t *testing.T) {
	u := uri.MustParse("jdbc://db1/orders/items/?fetch=eager")
	assert.Equal(t, "jdbc://db1/orders/items/42?fetch=eager", Response{AssignedID: "42"}.Apply(u).String())
	assert.Equal(t, u, Response{}.Apply(u))
}

func TestOptionsProperties(t *testing.T) {
	opts := Options{OptionName: "db1", OptionDatabaseName: "orders", OptionType: "derby", "user": "app", "ssl": "true"}
	assert.Equal(t, adapter.Properties{"user": "app", "ssl": "true"}, opts.Properties())
}

func TestHandlerOwnsDefaultExecutor(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil)
	require.NoError(t, h.Close())

	_, err := h.ResolveConnection(context.Background(), Options{OptionName: "x"}).Get(context.Background())
	assert.ErrorIs(t, err, adapter.ErrUnknownConnection)
}
