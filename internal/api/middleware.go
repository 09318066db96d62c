package api

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/npezzotti/anon-chat/internal/stats"
	"golang.org/x/time/rate"
)

func (s *AnonChatApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				s.log.Error().Err(panicError).Str("path", r.URL.Path).Msg("panic")
				w.Header().Set("Connection", "close")
				s.writeError(w, NewInternalServerError(panicError))
				return
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *AnonChatApp) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenCookie, err := r.Cookie(tokenCookieKey)
		if err != nil {
			s.writeError(w, NewUnauthorizedError())
			return
		}

		username, err := s.extractAdminFromToken(tokenCookie.Value)
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to extract admin from token")
			s.writeError(w, NewUnauthorizedError())
			return
		}

		ctx := WithAdmin(r.Context(), username)
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		next(w, r.WithContext(ctx))
	}
}

func (s *AnonChatApp) rateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientAddr(r)) {
			s.incr(stats.MetricRateLimited)
			w.Header().Set("Retry-After", "1")
			s.writeError(w, NewTooManyRequestsError())
			return
		}

		next(w, r)
	}
}

// clientAddr is the request's remote host. Behind a trusted proxy,
// ProxyHeaders has already replaced RemoteAddr with X-Forwarded-For.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

const (
	limiterIdle = 5 * time.Minute
	maxVisitors = 10000
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter keeps one token bucket per client address. Once maxVisitors
// addresses are tracked, new addresses share a single overflow bucket until
// the next sweep frees room.
type clientLimiter struct {
	mu          sync.Mutex
	limit       rate.Limit
	burst       int
	visitors    map[string]*visitor
	maxVisitors int
	overflow    *rate.Limiter
	lastSweep   time.Time
	now         func() time.Time
}

// newClientLimiter returns a limiter allowing limit requests per second per
// client. A non-positive limit disables limiting.
func newClientLimiter(limit float64, burst int) *clientLimiter {
	l := rate.Limit(limit)
	if limit <= 0 {
		l = rate.Inf
	}

	return &clientLimiter{
		limit:       l,
		burst:       burst,
		visitors:    make(map[string]*visitor),
		maxVisitors: maxVisitors,
		overflow:    rate.NewLimiter(l, burst),
		now:         time.Now,
	}
}

func (l *clientLimiter) allow(addr string) bool {
	if l.limit == rate.Inf {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > limiterIdle {
		l.sweep(now)
	}

	v, ok := l.visitors[addr]
	if !ok {
		if len(l.visitors) >= l.maxVisitors {
			return l.overflow.AllowN(now, 1)
		}
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[addr] = v
	}
	v.lastSeen = now

	return v.limiter.AllowN(now, 1)
}

// sweep drops visitors idle for longer than limiterIdle. Callers hold mu.
func (l *clientLimiter) sweep(now time.Time) {
	for a, v := range l.visitors {
		if now.Sub(v.lastSeen) > limiterIdle {
			delete(l.visitors, a)
		}
	}
	l.lastSweep = now
}
