package internal

import (
	"math"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/jamesprial/go-reddit-session/pkg/types"
)

const (
	headerRateLimitRemaining = "X-Ratelimit-Remaining"
	headerRateLimitReset     = "X-Ratelimit-Reset"
	ParseFloatBitSize        = 64
)

// RateLimitRecorder keeps the last rate-limit snapshot reported by Reddit.
// Writers overwrite each other; the newest response wins.
type RateLimitRecorder struct {
	latest atomic.Pointer[types.RateLimit]
	now    func() time.Time
}

// NewRateLimitRecorder creates an empty recorder. A nil now uses time.Now.
func NewRateLimitRecorder(now func() time.Time) *RateLimitRecorder {
	if now == nil {
		now = time.Now
	}
	return &RateLimitRecorder{now: now}
}

// Record reads the rate-limit headers of resp. It returns the new snapshot and
// true when both headers were present and numeric; otherwise the stored
// snapshot is left untouched.
func (r *RateLimitRecorder) Record(header http.Header) (types.RateLimit, bool) {
	remainingHeader := header.Get(headerRateLimitRemaining)
	resetHeader := header.Get(headerRateLimitReset)
	if remainingHeader == "" || resetHeader == "" {
		return types.RateLimit{}, false
	}

	// Reddit reports remaining as a float ("598.0").
	remaining, errRemaining := strconv.ParseFloat(remainingHeader, ParseFloatBitSize)
	resetSeconds, errReset := strconv.ParseFloat(resetHeader, ParseFloatBitSize)
	if errRemaining != nil || errReset != nil || !validHeaderValue(remaining) || !validHeaderValue(resetSeconds) {
		return types.RateLimit{}, false
	}

	now := r.now()
	snapshot := types.RateLimit{
		Remaining: int(remaining),
		Reset:     now.Add(time.Duration(resetSeconds * float64(time.Second))),
		Observed:  now,
	}
	r.latest.Store(&snapshot)
	return snapshot, true
}

// maxHeaderValue keeps both int(v) and v seconds as a time.Duration in range.
var maxHeaderValue = math.MaxInt64 / float64(time.Second)

func validHeaderValue(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0 && v < maxHeaderValue
}

// Latest returns a copy of the last snapshot, if any was recorded.
func (r *RateLimitRecorder) Latest() (types.RateLimit, bool) {
	p := r.latest.Load()
	if p == nil {
		return types.RateLimit{}, false
	}
	return *p, true
}
