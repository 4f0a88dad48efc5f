package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ikimina/momoledger/internal/auth"
	"github.com/ikimina/momoledger/internal/middleware"
	"github.com/ikimina/momoledger/internal/storage"
)

// NewRouter assembles the HTTP routing table. Auth, health and metrics stay
// public; everything under /v1 besides /v1/auth requires a staff token.
func NewRouter(h *Handlers, ah *AuthHandlers, dh *DirectoryHandlers,
	store storage.Store, jwtManager *auth.JWTManager) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/auth/register", ah.handleRegister)
	mux.HandleFunc("POST /v1/auth/login", ah.handleLogin)

	protected := middleware.RequireAuth(jwtManager)
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, protected(fn))
	}

	handle("POST /v1/sms", h.handleIngest)

	handle("GET /v1/transactions/unallocated", h.handleListUnallocated)
	handle("GET /v1/transactions/{id}", h.handleGetTransaction)
	handle("GET /v1/transactions/{id}/audit", h.handleAuditTrail)
	handle("GET /v1/transactions/{id}/suggestion", h.handleSuggest)
	handle("POST /v1/transactions/{id}/allocate", h.handleAllocate)
	handle("POST /v1/transactions/allocate-batch", h.handleAllocateBatch)
	handle("POST /v1/transactions/{id}/reverse", h.handleReverse)
	handle("POST /v1/transactions/{id}/flag", h.handleFlag)
	handle("POST /v1/transactions/{id}/unflag", h.handleUnflag)
	handle("POST /v1/transactions/{id}/mark-duplicate", h.handleMarkDuplicate)
	handle("POST /v1/transactions/{id}/unmark-duplicate", h.handleUnmarkDuplicate)

	handle("GET /v1/duplicates", h.handleListDuplicates)

	handle("GET /v1/parse-failures", h.handleListParseFailures)
	handle("POST /v1/parse-failures/{id}/retry", h.handleRetryParse)
	handle("POST /v1/parse-failures/{id}/resolve", h.handleResolveParseFailure)

	handle("POST /v1/members", dh.handleCreateMember)
	handle("GET /v1/members/{id}", dh.handleGetMember)
	handle("POST /v1/groups", dh.handleCreateGroup)
	handle("GET /v1/groups/{id}", dh.handleGetGroup)

	mux.HandleFunc("GET /healthz", healthHandler(store))
	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.Logging(middleware.Metrics(mux))
}

func healthHandler(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
