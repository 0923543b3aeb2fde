package middleware

import (
	"net/http"
	"strconv"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/Nzyazin/currency-tracker/internal/core/logger"
)

// NewIPLimiter builds an in-memory per-IP limiter from a formatted rate such as "100-S".
func NewIPLimiter(formatted string) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}
	return limiter.New(memory.NewStore(), rate), nil
}

// RateLimit rejects requests from an IP that exhausted its quota with 429.
func RateLimit(limiterInstance *limiter.Limiter, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := limiterInstance.GetIPKey(r)

			lctx, err := limiterInstance.Get(r.Context(), ip)
			if err != nil {
				log.Error("Failed to get rate limit context",
					logger.StringField("ip", ip),
					logger.ErrorField("error", err))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"message":"internal server error"}`))
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

			if lctx.Reached {
				log.Warn("Rate limit exceeded",
					logger.StringField("ip", ip),
					logger.Int64Field("limit", lctx.Limit))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"message":"too many requests"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
