package detailpage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/medcheck/MedCheck-Engine/pkg/errors"
)

func TestHTTPFetcher_ExtractsVisibleText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><head><script>var x=1;</script></head>` +
			`<body><h1>Public Alert</h1><p>Batch T36184B recalled.</p></body></html>`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5*time.Second, nil)
	text, err := f.FetchPage(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, text, "Public Alert")
	assert.Contains(t, text, "T36184B")
	assert.NotContains(t, text, "var x=1")
}

func TestHTTPFetcher_RetriesTransientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`<html><body>recovered</body></html>`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5*time.Second, nil)
	text, err := f.FetchPage(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, text, "recovered")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPFetcher_ClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5*time.Second, nil)
	_, err := f.FetchPage(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSourceUnavailable))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
