// Package http exposes the JSON REST surface over the services layer.
package http

import (
	"container/list"
	"context"
	"net/http"
	"sync"
	"time"

	"financeiro/internal/middleware/trace"
	"financeiro/internal/services"
	"financeiro/internal/store"
)

// lruCache with TTL and size-based eviction; caches invoice summaries.
type lruCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

func newLRUCache[T any](maxSize int, ttl time.Duration) *lruCache[T] {
	return &lruCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

func (c *lruCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		return zero, false
	}
	item := elem.Value.(*cacheItem[T])
	if time.Now().After(item.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}
	c.lru.MoveToFront(elem)
	return item.data, true
}

func (c *lruCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &cacheItem[T]{key: key, data: data, expiresAt: time.Now().Add(c.ttl)}
	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}
	elem := c.lru.PushFront(item)
	c.items[key] = elem
	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Purge drops every entry. Invoice groupings depend on transactions and
// account card settings, so any write invalidates all months.
func (c *lruCache[T]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.lru = list.New()
}

func (c *lruCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

// Simple in-memory rate limiter: 60 writes per minute per client.
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]
	if !exists {
		rl.clients[clientIP] = &clientInfo{lastRequest: now, requests: 1}
		return true
	}
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}
	client.requests++
	client.lastRequest = now
	return client.requests <= 60
}

// Server wires the service layer to HTTP routes.
type Server struct {
	http.Server
	store        *store.Store
	ledger       *services.Ledger
	transactions *services.Transactions
	recurrents   *services.Recurrents
	investments  *services.Investments
	backup       *services.Backup
	alerts       *services.Alerts

	rateLimiter  *rateLimiter
	invoiceCache *lruCache[[]services.AccountInvoice]
	shutdownOnce sync.Once
}

// NewServer configures all routes and middleware, returning a
// ready-to-run server.
func NewServer(addr string, st *store.Store, ledger *services.Ledger, transactions *services.Transactions, recurrents *services.Recurrents, investments *services.Investments, backup *services.Backup, alerts *services.Alerts) *Server {
	mux := http.NewServeMux()

	s := &Server{
		store:        st,
		ledger:       ledger,
		transactions: transactions,
		recurrents:   recurrents,
		investments:  investments,
		backup:       backup,
		alerts:       alerts,
		rateLimiter:  newRateLimiter(),
		invoiceCache: newLRUCache[[]services.AccountInvoice](100, 5*time.Minute),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /accounts", s.handleListAccounts)
	mux.HandleFunc("POST /accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /accounts/{id}", s.handleGetAccount)
	mux.HandleFunc("PATCH /accounts/{id}", s.handlePatchAccount)
	mux.HandleFunc("DELETE /accounts/{id}", s.handleDeleteAccount)
	mux.HandleFunc("POST /accounts/{id}/adjust", s.handleAdjustBalance)
	mux.HandleFunc("GET /accounts/{id}/history", s.handleAccountHistory)

	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PATCH /transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /transactions/{id}/pay", s.handlePayTransaction)
	mux.HandleFunc("POST /transactions/{id}/unpay", s.handleUnpayTransaction)
	mux.HandleFunc("POST /transactions/installments", s.handleGenerateInstallments)
	mux.HandleFunc("DELETE /installments/{parentId}", s.handleDeleteInstallmentGroup)
	mux.HandleFunc("GET /invoices", s.handleInvoices)

	mux.HandleFunc("GET /recurrents", s.handleListRecurrents)
	mux.HandleFunc("POST /recurrents", s.handleCreateRecurrent)
	mux.HandleFunc("GET /recurrents/{id}", s.handleGetRecurrent)
	mux.HandleFunc("PATCH /recurrents/{id}", s.handleUpdateRecurrent)
	mux.HandleFunc("DELETE /recurrents/{id}", s.handleDeleteRecurrent)
	mux.HandleFunc("POST /recurrents/{id}/pay", s.handlePayRecurrent)

	mux.HandleFunc("GET /positions", s.handleListPositions)
	mux.HandleFunc("POST /positions", s.handleCreatePosition)
	mux.HandleFunc("GET /positions/{id}", s.handleGetPosition)
	mux.HandleFunc("PATCH /positions/{id}", s.handleUpdatePosition)
	mux.HandleFunc("DELETE /positions/{id}", s.handleDeletePosition)
	mux.HandleFunc("POST /positions/{id}/recompute", s.handleRecomputePosition)
	mux.HandleFunc("POST /admin/recompute-positions", s.handleRecomputeAll)

	mux.HandleFunc("GET /investment-events", s.handleListEvents)
	mux.HandleFunc("POST /investment-events", s.handleCreateEvent)
	mux.HandleFunc("PATCH /investment-events/{id}", s.handleUpdateEvent)
	mux.HandleFunc("DELETE /investment-events/{id}", s.handleDeleteEvent)

	mux.HandleFunc("GET /backup/export", s.handleBackupExport)
	mux.HandleFunc("POST /backup/import", s.handleBackupImport)
	mux.HandleFunc("GET /alerts", s.handleAlerts)

	traceMW := trace.NewMiddleware(clientIP)
	s.Server = http.Server{
		Addr:    addr,
		Handler: traceMW.Middleware(s.withProtection(mux)),
	}
	return s
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// withProtection adds security headers and rate-limits mutating
// requests.
func (s *Server) withProtection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the cleanup goroutines and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
