package provision

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/worldcoin/world-chat-backend-sub000/internal/config"
	"github.com/worldcoin/world-chat-backend-sub000/internal/httpx"
	"github.com/worldcoin/world-chat-backend-sub000/internal/keyexchange"
	"github.com/worldcoin/world-chat-backend-sub000/internal/types/api"
)

var errFake = errors.New("fake failure")

type fakeCoordinator struct {
	sync.Mutex
	canGenerate bool
	checkErr    error
	markErr     error
	marked      int
	released    int
}

func (f *fakeCoordinator) ShouldGenerateKey(context.Context, string) (bool, error) {
	return f.canGenerate, f.checkErr
}

func (f *fakeCoordinator) MarkKeyLoaded(context.Context, string) error {
	f.Lock()
	defer f.Unlock()
	f.marked++
	return f.markErr
}

func (f *fakeCoordinator) ReleaseLock(context.Context, string) error {
	f.Lock()
	defer f.Unlock()
	f.released++
	return nil
}

type fakeEnclave struct {
	sync.Mutex
	waitErr  error
	failures int
	failWith error
	requests []api.InitializeRequest
}

func (f *fakeEnclave) WaitForHealth(context.Context) error {
	return f.waitErr
}

func (f *fakeEnclave) Initialize(_ context.Context, req *api.InitializeRequest) (*api.InitializeResponse, error) {
	f.Lock()
	defer f.Unlock()
	f.requests = append(f.requests, *req)
	if len(f.requests) <= f.failures {
		return nil, f.failWith
	}
	source := api.SourcePeer
	if req.GenerateKeyPair {
		source = api.SourceGenerated
	}
	return &api.InitializeResponse{Source: source}, nil
}

func testCfg() *config.Init {
	return &config.Init{
		CID:              16,
		Port:             8080,
		ClusterProxyPort: 9000,
		Track:            "blue",
		RedisURL:         "redis://localhost:6379",
		Timeout:          time.Second,
		MaxRetries:       3,
		RetryDelay:       time.Millisecond,
	}
}

func TestRun(t *testing.T) {
	cases := []struct {
		name         string
		coord        *fakeCoordinator
		enclave      *fakeEnclave
		wantErr      error
		wantAttempts int
		wantGenerate bool
		wantMarked   int
		wantReleased int
	}{
		{
			name:         "generate on first attempt",
			coord:        &fakeCoordinator{canGenerate: true},
			enclave:      &fakeEnclave{},
			wantAttempts: 1,
			wantGenerate: true,
			wantMarked:   1,
		},
		{
			name:         "fetch from peer",
			coord:        &fakeCoordinator{},
			enclave:      &fakeEnclave{},
			wantAttempts: 1,
		},
		{
			name:         "coordinator unavailable",
			coord:        &fakeCoordinator{canGenerate: true, checkErr: errFake},
			enclave:      &fakeEnclave{},
			wantAttempts: 1,
		},
		{
			name:         "succeed on last attempt",
			coord:        &fakeCoordinator{canGenerate: true},
			enclave:      &fakeEnclave{failures: 2, failWith: errFake},
			wantAttempts: 3,
			wantGenerate: true,
			wantMarked:   1,
		},
		{
			name:         "marking fails",
			coord:        &fakeCoordinator{canGenerate: true, markErr: errFake},
			enclave:      &fakeEnclave{},
			wantAttempts: 1,
			wantGenerate: true,
			wantMarked:   1,
		},
		{
			name:         "attempts exhausted while holding lock",
			coord:        &fakeCoordinator{canGenerate: true},
			enclave:      &fakeEnclave{failures: 3, failWith: errFake},
			wantErr:      ErrExhausted,
			wantAttempts: 3,
			wantGenerate: true,
			wantReleased: 1,
		},
		{
			name:         "attempts exhausted without lock",
			coord:        &fakeCoordinator{},
			enclave:      &fakeEnclave{failures: 3, failWith: errFake},
			wantErr:      ErrExhausted,
			wantAttempts: 3,
		},
		{
			name:  "bad request is not retried",
			coord: &fakeCoordinator{canGenerate: true},
			enclave: &fakeEnclave{
				failures: 3,
				failWith: &httpx.StatusError{Code: http.StatusBadRequest},
			},
			wantErr:      ErrExhausted,
			wantAttempts: 1,
			wantGenerate: true,
			wantReleased: 1,
		},
		{
			name:    "enclave never comes up",
			coord:   &fakeCoordinator{canGenerate: true},
			enclave: &fakeEnclave{waitErr: errFake},
			wantErr: errFake,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := Run(context.Background(), testCfg(), c.coord, c.enclave)
			require.ErrorIs(t, err, c.wantErr)

			require.Len(t, c.enclave.requests, c.wantAttempts)
			for _, req := range c.enclave.requests {
				require.Equal(t, c.wantGenerate, req.GenerateKeyPair)
				require.Equal(t, uint32(9000), req.ClusterProxyPort)
			}
			require.Equal(t, c.wantMarked, c.coord.marked)
			require.Equal(t, c.wantReleased, c.coord.released)
		})
	}
}

func TestRunCanceled(t *testing.T) {
	cfg := testCfg()
	cfg.RetryDelay = time.Hour
	coord := &fakeCoordinator{canGenerate: true}
	enclave := &fakeEnclave{failures: 3, failWith: errFake}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, cfg, coord, enclave)
	require.ErrorIs(t, err, ErrExhausted)
	require.Len(t, enclave.requests, 1)
	require.Equal(t, 1, coord.released)
}

func TestRunWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := keyexchange.NewRedisStore("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	coord := keyexchange.New(store)
	ctx := context.Background()

	// The first enclave of the track generates the key and marks it loaded.
	first := &fakeEnclave{}
	require.NoError(t, Run(ctx, testCfg(), coord, first))
	require.True(t, first.requests[0].GenerateKeyPair)
	state, err := coord.State(ctx, "blue")
	require.NoError(t, err)
	require.Equal(t, keyexchange.Loaded, state)

	// Later ones fetch it from their peers.
	second := &fakeEnclave{}
	require.NoError(t, Run(ctx, testCfg(), coord, second))
	require.False(t, second.requests[0].GenerateKeyPair)

	// A failed generator gives up its lock, so somebody else can try.
	cfg := testCfg()
	cfg.Track = "green"
	failing := &fakeEnclave{failures: 3, failWith: errFake}
	require.ErrorIs(t, Run(ctx, cfg, coord, failing), ErrExhausted)
	state, err = coord.State(ctx, "green")
	require.NoError(t, err)
	require.Equal(t, keyexchange.Absent, state)
}
