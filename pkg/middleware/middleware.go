// Package middleware wraps an http.Handler with distributed rate limiting.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/xrl-go/xrl/log"
	"go.uber.org/zap"
)

const (
	headerState      = "X-Ratelimit-State"
	headerRetryAfter = "Retry-After"
	headerRequestID  = "X-Request-Id"

	stateAllow = "Allow"
	stateDeny  = "Deny"
)

// KeyExtractor derives the rate-limit key from an incoming request. It must
// not cause side effects on the request (in particular, never read the body).
type KeyExtractor interface {
	Extract(r *http.Request) (string, error)
}

type headerKeyExtractor struct {
	header string
}

// NewHeaderKeyExtractor builds a KeyExtractor reading a single request
// header. Pick a header that is unique per client, such as X-Forwarded-For
// or an API key header.
func NewHeaderKeyExtractor(header string) KeyExtractor {
	return &headerKeyExtractor{header: header}
}

func (h *headerKeyExtractor) Extract(r *http.Request) (string, error) {
	value := r.Header.Get(h.header)
	if value == "" {
		return "", fmt.Errorf("the header %s must have a value set", h.header)
	}
	return value, nil
}

// LimitFunc decides one request for a key, typically a closure over a
// limiter's TryAcquire with the parameters bound.
type LimitFunc func(ctx context.Context, key string) (bool, error)

// Config ties a key extractor to a limit decision.
type Config struct {
	Extractor KeyExtractor
	Limit     LimitFunc

	// RetryAfter is the hint sent to denied clients. Zero omits the header.
	RetryAfter time.Duration
}

type rateLimitHandler struct {
	next   http.Handler
	config *Config
}

// NewRateLimitHandler wraps next with rate limiting. Denied requests get a
// 429 and never reach the wrapped handler; a request whose key cannot be
// extracted gets a 400; a store failure gets a 500 rather than a guessed
// decision.
func NewRateLimitHandler(next http.Handler, config *Config) http.Handler {
	return &rateLimitHandler{
		next:   next,
		config: config,
	}
}

func (h *rateLimitHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	requestID := request.Header.Get(headerRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	writer.Header().Set(headerRequestID, requestID)

	key, err := h.config.Extractor.Extract(request)
	if err != nil {
		h.writeResponse(writer, http.StatusBadRequest, "failed to collect rate limiting key from request: %v", err)
		return
	}

	allowed, err := h.config.Limit(request.Context(), key)
	if err != nil {
		log.Logger().Error("Failed to run rate limiting for request",
			zap.String("key", key), zap.String("requestId", requestID), zap.Error(err))
		h.writeResponse(writer, http.StatusInternalServerError, "failed to run rate limiting for request")
		return
	}

	if !allowed {
		writer.Header().Set(headerState, stateDeny)
		if h.config.RetryAfter > 0 {
			writer.Header().Set(headerRetryAfter, strconv.Itoa(int(h.config.RetryAfter.Seconds())))
		}
		log.Logger().Info("Request denied by rate limiter",
			zap.String("key", key), zap.String("requestId", requestID))
		h.writeResponse(writer, http.StatusTooManyRequests, "you have sent too many requests to this service, slow down please")
		return
	}

	writer.Header().Set(headerState, stateAllow)
	h.next.ServeHTTP(writer, request)
}

func (h *rateLimitHandler) writeResponse(writer http.ResponseWriter, status int, msg string, args ...interface{}) {
	writer.Header().Set("Content-Type", "text/plain")
	writer.WriteHeader(status)
	if _, err := writer.Write([]byte(fmt.Sprintf(msg, args...))); err != nil {
		log.Logger().Error("Failed to write response body", zap.Error(err))
	}
}
