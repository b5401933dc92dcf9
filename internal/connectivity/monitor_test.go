package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(endpoints ...string) *Monitor {
	m := New(endpoints, time.Second)
	m.ifaceCheck = func() bool { return true }
	return m
}

func TestCheckOnlineWhenProbeSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	m := newTestMonitor(srv.URL)
	assert.True(t, m.Check(context.Background()))
	assert.True(t, m.Online())
}

func TestCheckOfflineWhenAllProbesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := newTestMonitor(srv.URL)
	assert.False(t, m.Check(context.Background()))
	assert.False(t, m.Online())
}

func TestCheckFallsThroughToNextEndpoint(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()

	m := newTestMonitor(bad.URL, good.URL)
	assert.True(t, m.Check(context.Background()))
}

func TestCheckOfflineWithoutUsableInterface(t *testing.T) {
	var probed atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probed.Add(1)
	}))
	defer srv.Close()

	m := newTestMonitor(srv.URL)
	m.ifaceCheck = func() bool { return false }

	assert.False(t, m.Check(context.Background()))
	// Interface gate skips reachability probes entirely.
	assert.Zero(t, probed.Load())
}

func TestCheckTimesOutOnHangingEndpoint(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	m := newTestMonitor(srv.URL)
	m.timeout = 50 * time.Millisecond

	start := time.Now()
	assert.False(t, m.Check(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestOnOnlineFiresOnlyOnTransition(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusInternalServerError)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	var fired atomic.Int32
	m := newTestMonitor(srv.URL)
	m.SetOnOnline(func() { fired.Add(1) })

	ctx := context.Background()
	require.False(t, m.Check(ctx))
	assert.Zero(t, fired.Load())

	status.Store(http.StatusNoContent)
	require.True(t, m.Check(ctx))
	assert.Equal(t, int32(1), fired.Load())

	// Staying online does not refire.
	require.True(t, m.Check(ctx))
	assert.Equal(t, int32(1), fired.Load())

	// A full offline/online cycle does.
	status.Store(http.StatusInternalServerError)
	require.False(t, m.Check(ctx))
	status.Store(http.StatusNoContent)
	require.True(t, m.Check(ctx))
	assert.Equal(t, int32(2), fired.Load())
}
