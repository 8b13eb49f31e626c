package cartsync_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nikolayk812/storefront-cart/internal/backend"
	"github.com/nikolayk812/storefront-cart/internal/cartsync"
	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/kvstore"
	"github.com/nikolayk812/storefront-cart/internal/logger"
	"github.com/nikolayk812/storefront-cart/internal/notify"
	"github.com/nikolayk812/storefront-cart/internal/port"
	"github.com/nikolayk812/storefront-cart/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

const testBaseURL = "https://shop.test"

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   string
}

type reply struct {
	status int
	body   string
}

// fakeBackend answers requests in-process so tests need no sockets.
type fakeBackend struct {
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]reply
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{routes: map[string]reply{}}
}

func (f *fakeBackend) on(method, path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = reply{status: status, body: body}
}

func (f *fakeBackend) RoundTrip(r *http.Request) (*http.Response, error) {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
		_ = r.Body.Close()
	}

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Auth:   r.Header.Get("Authorization"),
		Body:   string(body),
	})
	rep, ok := f.routes[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if !ok {
		rep = reply{status: http.StatusNotFound, body: `{"detail":"not found"}`}
	}
	return &http.Response{
		StatusCode: rep.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(rep.body)),
		Request:    r,
	}, nil
}

func (f *fakeBackend) Requests() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *fakeBackend) Count(method, path string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

type fixture struct {
	fake  *fakeBackend
	store port.SessionStore
	bus   *notify.Bus
	repo  port.CartRepository
	state *repository.SyncStateRepository
	agent *cartsync.Agent
}

func newFixture(t *testing.T, debounce time.Duration) *fixture {
	t.Helper()

	fake := newFakeBackend()
	store := kvstore.NewMemory().Session()
	bus := notify.NewBus(logger.Nop())
	state := repository.NewSyncState(store)

	repo, err := repository.NewCart(context.Background(), store, bus, currency.INR, logger.Nop())
	require.NoError(t, err)

	client, err := backend.NewClientWithHTTP(testBaseURL, &http.Client{Transport: fake}, state)
	require.NoError(t, err)

	agent := cartsync.NewAgent(client, repo, bus, state, cartsync.Options{
		Debounce: debounce,
		Currency: currency.INR,
		Logger:   logger.Nop(),
	})

	return &fixture{
		fake:  fake,
		store: store,
		bus:   bus,
		repo:  repo,
		state: state,
		agent: agent,
	}
}

func product(id domain.ProductID, price int64) domain.Product {
	return domain.Product{ID: id, Name: "P" + id.String(), Price: decimal.NewFromInt(price)}
}

func decodePayload(t *testing.T, body string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &m))
	return m
}
