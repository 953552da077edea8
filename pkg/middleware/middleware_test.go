package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

func TestRateLimitHandler(t *testing.T) {
	var tests = []struct {
		name       string
		limit      LimitFunc
		keyHeader  string
		wantStatus int
		wantState  string
	}{
		{
			name: "allowed request reaches the wrapped handler",
			limit: func(ctx context.Context, key string) (bool, error) {
				return true, nil
			},
			keyHeader:  "10.0.0.1",
			wantStatus: http.StatusOK,
			wantState:  stateAllow,
		},
		{
			name: "denied request gets a 429",
			limit: func(ctx context.Context, key string) (bool, error) {
				return false, nil
			},
			keyHeader:  "10.0.0.1",
			wantStatus: http.StatusTooManyRequests,
			wantState:  stateDeny,
		},
		{
			name: "store failure is a 500, never a decision",
			limit: func(ctx context.Context, key string) (bool, error) {
				return false, errors.New("store unavailable")
			},
			keyHeader:  "10.0.0.1",
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "missing key is a 400",
			limit: func(ctx context.Context, key string) (bool, error) {
				t.Fatal("limiter must not run without a key")
				return false, nil
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewRateLimitHandler(okHandler(), &Config{
				Extractor:  NewHeaderKeyExtractor("X-Forwarded-For"),
				Limit:      tt.limit,
				RetryAfter: 2 * time.Second,
			})

			request := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.keyHeader != "" {
				request.Header.Set("X-Forwarded-For", tt.keyHeader)
			}

			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, request)

			assert.Equal(t, tt.wantStatus, recorder.Code)
			if tt.wantState != "" {
				assert.Equal(t, tt.wantState, recorder.Header().Get(headerState))
			}
			assert.NotEmpty(t, recorder.Header().Get(headerRequestID))
		})
	}
}

func TestRateLimitHandler_RetryAfterHint(t *testing.T) {
	handler := NewRateLimitHandler(okHandler(), &Config{
		Extractor: NewHeaderKeyExtractor("X-Forwarded-For"),
		Limit: func(ctx context.Context, key string) (bool, error) {
			return false, nil
		},
		RetryAfter: 5 * time.Second,
	})

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("X-Forwarded-For", "10.0.0.1")

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, "5", recorder.Header().Get(headerRetryAfter))
}

func TestRateLimitHandler_KeepsCallerRequestID(t *testing.T) {
	handler := NewRateLimitHandler(okHandler(), &Config{
		Extractor: NewHeaderKeyExtractor("X-Forwarded-For"),
		Limit: func(ctx context.Context, key string) (bool, error) {
			return true, nil
		},
	})

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("X-Forwarded-For", "10.0.0.1")
	request.Header.Set(headerRequestID, "abc-123")

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, "abc-123", recorder.Header().Get(headerRequestID))
}
