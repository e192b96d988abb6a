package sender

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/filewatchrest/pkg/circuitbreaker"
	"github.com/0xmhha/filewatchrest/pkg/clock"
)

func factoryFor(url string, body string) RequestFactory {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(body))
	}
}

func TestSendSucceedsFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(Config{Retries: 2, RetryDelay: time.Millisecond, Clock: clock.New()}, nil, nil)
	result, err := s.Send(context.Background(), srv.URL, factoryFor(srv.URL, "data"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, http.StatusOK, result.StatusCode)
}

func TestSendRetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	fc := clock.NewFake(time.Unix(0, 0))
	go func() {
		for i := 0; i < 10; i++ {
			time.Sleep(2 * time.Millisecond)
			fc.Advance(5 * time.Second)
		}
	}()

	s := New(Config{Retries: 3, RetryDelay: time.Millisecond, Clock: fc}, nil, nil)
	result, err := s.Send(context.Background(), srv.URL, factoryFor(srv.URL, "data"))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Attempts)
}

func TestSendTerminalOn4xxNoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := New(Config{Retries: 3, RetryDelay: time.Millisecond, Clock: clock.New()}, nil, nil)
	_, err := s.Send(context.Background(), srv.URL, factoryFor(srv.URL, "data"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNonRetryableSend)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSendExhaustsRetriesOnPersistent5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	fc := clock.NewFake(time.Unix(0, 0))
	go func() {
		for i := 0; i < 10; i++ {
			time.Sleep(2 * time.Millisecond)
			fc.Advance(5 * time.Second)
		}
	}()

	s := New(Config{Retries: 2, RetryDelay: time.Millisecond, Clock: fc}, nil, nil)
	_, err := s.Send(context.Background(), srv.URL, factoryFor(srv.URL, "data"))
	assert.ErrorIs(t, err, ErrRetryableSend)
}

func TestSendSetsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(Config{Retries: 0, RetryDelay: time.Millisecond, BearerToken: "secret-token", Clock: clock.New()}, nil, nil)
	_, err := s.Send(context.Background(), srv.URL, factoryFor(srv.URL, "data"))
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth)
}

func TestSendRespectsOpenCircuit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	circuits := circuitbreaker.NewRegistry(circuitbreaker.Config{FailureThreshold: 1, OpenDuration: time.Minute})
	circuits.RecordFailure(srv.URL)

	s := New(Config{Retries: 0, RetryDelay: time.Millisecond, Clock: clock.New()}, circuits, nil)
	_, err := s.Send(context.Background(), srv.URL, factoryFor(srv.URL, "data"))
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
}

func TestSendRecordsSuccessClosesCircuit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	circuits := circuitbreaker.NewRegistry(circuitbreaker.Config{FailureThreshold: 3, OpenDuration: time.Minute})
	s := New(Config{Retries: 0, RetryDelay: time.Millisecond, Clock: clock.New()}, circuits, nil)

	_, err := s.Send(context.Background(), srv.URL, factoryFor(srv.URL, "data"))
	require.NoError(t, err)
	assert.Equal(t, circuitbreaker.StateClosed, circuits.State(srv.URL))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, outcomeSuccess, classify(http.StatusOK))
	assert.Equal(t, outcomeSuccess, classify(http.StatusCreated))
	assert.Equal(t, outcomeRetryable, classify(http.StatusServiceUnavailable))
	assert.Equal(t, outcomeRetryable, classify(http.StatusTooManyRequests))
	assert.Equal(t, outcomeRetryable, classify(http.StatusRequestTimeout))
	assert.Equal(t, outcomeTerminal, classify(http.StatusBadRequest))
	assert.Equal(t, outcomeTerminal, classify(http.StatusNotFound))
}

func TestReadLimited(t *testing.T) {
	data, err := readLimited(io.NopCloser(bytes.NewBufferString("hello world")), 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}
