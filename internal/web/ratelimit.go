// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package web

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// loginLimiter throttles login attempts per client IP.
type loginLimiter struct {
	rate  rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

func newLoginLimiter(perSecond float64, burst int) *loginLimiter {
	return &loginLimiter{
		rate:    rate.Limit(perSecond),
		burst:   burst,
		now:     time.Now,
		clients: make(map[string]*clientLimiter),
	}
}

func (l *loginLimiter) allow(ip string) bool {
	now := l.now()

	l.mu.Lock()
	cl, ok := l.clients[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[ip] = cl
	}
	cl.lastAccess = now
	l.mu.Unlock()

	return cl.limiter.AllowN(now, 1)
}

// sweep drops clients idle for longer than ttl.
func (l *loginLimiter) sweep(ttl time.Duration) int {
	now := l.now()
	removed := 0

	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, cl := range l.clients {
		if now.Sub(cl.lastAccess) > ttl {
			delete(l.clients, ip)
			removed++
		}
	}
	return removed
}

func (l *loginLimiter) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// retryAfter is the estimated wait for one token, in whole seconds.
func (l *loginLimiter) retryAfter() string {
	secs := int(math.Ceil(1.0 / float64(l.rate)))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// clientIP is the peer address of r. Forwarding headers are ignored because
// clients control them.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
