package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a test server and a RestClient pointed at it.
func setupTestServer(handler http.Handler) (*RestClient, *httptest.Server) {
	server := httptest.NewServer(handler)

	rc := &RestClient{
		client:  resty.New().SetBaseURL(server.URL),
		apiKey:  "test_api_key",
		logger:  zap.NewNop(), // Use a no-op logger for tests
		limiter: rate.NewLimiter(rate.Inf, 1),
	}

	return rc, server
}

func TestFetchQuotes(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/quote", r.URL.Path)
			assert.Equal(t, "test_api_key", r.URL.Query().Get("apikey"))

			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Query().Get("symbol") {
			case "AAA":
				_, _ = w.Write([]byte(`{"symbol":"AAA","price":"101.5","previousClose":"100.0"}`))
			case "BBB":
				_, _ = w.Write([]byte(`{"symbol":"BBB","price":"12.25"}`))
			}
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		result := rc.FetchQuotes(context.Background(), []string{"AAA", "BBB"})

		assert.Len(t, result, 2)
		assert.InDelta(t, 101.5, result["AAA"].Price, 1e-9)
		if assert.NotNil(t, result["AAA"].PrevClose) {
			assert.InDelta(t, 100.0, *result["AAA"].PrevClose, 1e-9)
		}
		assert.InDelta(t, 12.25, result["BBB"].Price, 1e-9)
		assert.Nil(t, result["BBB"].PrevClose)
	})

	t.Run("PerSymbolFailureDoesNotAbortBatch", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Query().Get("symbol") {
			case "AAA":
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"upstream unavailable"}`))
			case "BBB":
				_, _ = w.Write([]byte(`{"symbol":"BBB","price":"not-a-number"}`))
			case "CCC":
				_, _ = w.Write([]byte(`{"symbol":"CCC","price":"42.0","previousClose":"41.0"}`))
			}
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		result := rc.FetchQuotes(context.Background(), []string{"AAA", "BBB", "CCC"})

		assert.Len(t, result, 1)
		assert.InDelta(t, 42.0, result["CCC"].Price, 1e-9)
	})

	t.Run("NonPositivePriceRejected", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"symbol":"AAA","price":"0"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		result := rc.FetchQuotes(context.Background(), []string{"AAA"})
		assert.Empty(t, result)
	})

	t.Run("BadPrevCloseKeepsPrice", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"symbol":"AAA","price":"55.5","previousClose":"n/a"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		result := rc.FetchQuotes(context.Background(), []string{"AAA"})

		assert.Len(t, result, 1)
		assert.InDelta(t, 55.5, result["AAA"].Price, 1e-9)
		assert.Nil(t, result["AAA"].PrevClose)
	})

	t.Run("MissingApiKeySkipsNetwork", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
		})

		rc, server := setupTestServer(handler)
		defer server.Close()
		rc.apiKey = ""

		result := rc.FetchQuotes(context.Background(), []string{"AAA", "BBB"})

		assert.Empty(t, result)
		assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	})

	t.Run("CancelledContextReturnsPartialResult", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"symbol":"AAA","price":"10.0"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result := rc.FetchQuotes(ctx, []string{"AAA", "BBB"})
		assert.Empty(t, result)
	})
}

func TestFetchQuotesSequentialGate(t *testing.T) {
	// With a real (tiny) interval, requests arrive one at a time.
	var inFlight, maxInFlight int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		if n > atomic.LoadInt32(&maxInFlight) {
			atomic.StoreInt32(&maxInFlight, n)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"X","price":"1.0"}`))
		atomic.AddInt32(&inFlight, -1)
	})

	rc, server := setupTestServer(handler)
	defer server.Close()
	rc.limiter = rate.NewLimiter(rate.Every(time.Millisecond), 1)

	result := rc.FetchQuotes(context.Background(), []string{"AAA", "BBB", "CCC"})

	assert.Len(t, result, 3)
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}
