package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/griff-rees/estios/internal/model"
	"github.com/griff-rees/estios/internal/store"
)

// seedResults solves a two-period scenario into a fresh store and returns it
// with the input hashes.
func seedResults(t *testing.T) (store.Store, []string) {
	t.Helper()
	st := newTestStore(t)
	asm := testAssembled(t, "2017Q3", "2017Q4")

	outcomes, err := runScenario(context.Background(), st, "yorkshire", asm, 1, false)
	require.NoError(t, err)

	hashes := make([]string, 0, len(outcomes))
	for _, out := range outcomes {
		require.NoError(t, out.Err)
		hashes = append(hashes, out.Hash)
	}
	return st, hashes
}

func TestServeHealth(t *testing.T) {
	st := newTestStore(t)
	srv := httptest.NewServer(newServeRouter(st))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServeListResults(t *testing.T) {
	st, _ := seedResults(t)
	srv := httptest.NewServer(newServeRouter(st))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/results?scenario=yorkshire")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summaries []store.ResultSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summaries))
	require.Len(t, summaries, 2)
	for _, rs := range summaries {
		assert.Equal(t, "yorkshire", rs.Scenario)
		assert.True(t, rs.Converged)
	}
}

func TestServeListResults_EmptyIsArray(t *testing.T) {
	st := newTestStore(t)
	srv := httptest.NewServer(newServeRouter(st))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/results")
	require.NoError(t, err)
	defer resp.Body.Close()

	var summaries []store.ResultSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summaries))
	assert.NotNil(t, summaries)
	assert.Empty(t, summaries)
}

func TestServeListResults_BadConverged(t *testing.T) {
	st := newTestStore(t)
	srv := httptest.NewServer(newServeRouter(st))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/results?converged=maybe")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeGetResult(t *testing.T) {
	st, hashes := seedResults(t)
	srv := httptest.NewServer(newServeRouter(st))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/results/" + hashes[0])
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result model.PeriodResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, hashes[0], result.InputHash)
	assert.Equal(t, "2017Q3", result.Period.String())
}

func TestServeGetResult_NotFound(t *testing.T) {
	st := newTestStore(t)
	srv := httptest.NewServer(newServeRouter(st))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/results/no-such-hash")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeAndWait_DrainsInFlightRequests(t *testing.T) {
	inHandler := make(chan struct{})
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(inHandler)
		<-release
		w.WriteHeader(http.StatusOK)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- serveAndWait(ctx, srv, ln) }()

	type reply struct {
		resp *http.Response
		err  error
	}
	replies := make(chan reply, 1)
	go func() {
		resp, getErr := http.Get("http://" + ln.Addr().String() + "/")
		replies <- reply{resp, getErr}
	}()

	// Cancel while the request is still being handled, then let it finish.
	<-inHandler
	cancel()
	close(release)

	got := <-replies
	require.NoError(t, got.err)
	defer got.resp.Body.Close()
	assert.Equal(t, http.StatusOK, got.resp.StatusCode)
	require.NoError(t, <-served)
}
