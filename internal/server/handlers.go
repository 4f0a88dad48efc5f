package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ikimina/momoledger/internal/auth"
	"github.com/ikimina/momoledger/internal/gate"
	"github.com/ikimina/momoledger/internal/middleware"
	"github.com/ikimina/momoledger/internal/models"
	"github.com/ikimina/momoledger/internal/service"
	"github.com/ikimina/momoledger/internal/storage"
)

// Handlers collects the HTTP handlers for the reconciliation API.
type Handlers struct {
	ingest     *service.IngestService
	alloc      *service.AllocationService
	duplicates *service.DuplicateService
	recovery   *service.RecoveryService
	suggest    *service.SuggestService
}

// NewHandlers creates the API handlers.
func NewHandlers(ingest *service.IngestService, alloc *service.AllocationService,
	duplicates *service.DuplicateService, recovery *service.RecoveryService,
	suggest *service.SuggestService) *Handlers {
	return &Handlers{
		ingest:     ingest,
		alloc:      alloc,
		duplicates: duplicates,
		recovery:   recovery,
		suggest:    suggest,
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// respondError maps the error taxonomy onto HTTP status codes.
func respondError(w http.ResponseWriter, err error) {
	var validationErr *service.ValidationError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrConflict), errors.Is(err, service.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, gate.ErrUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, auth.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, auth.ErrEmailExists):
		status = http.StatusConflict
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidRole):
		status = http.StatusBadRequest
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

// scopeOr401 pulls the authenticated scope out of the request context.
func scopeOr401(w http.ResponseWriter, r *http.Request) (models.Scope, bool) {
	scope, ok := middleware.GetScope(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": auth.ErrMissingToken.Error()})
	}
	return scope, ok
}

// ----- transaction serialization -----

type transactionJSON struct {
	ID              string   `json:"id"`
	InstitutionID   string   `json:"institution_id"`
	OccurredAt      int64    `json:"occurred_at"`
	AmountMinor     int64    `json:"amount_minor"`
	Currency        string   `json:"currency"`
	PayerPhone      string   `json:"payer_phone,omitempty"`
	PayerName       string   `json:"payer_name,omitempty"`
	MomoRef         string   `json:"momo_ref,omitempty"`
	Confidence      *float64 `json:"confidence,omitempty"`
	MatchKey        string   `json:"match_key"`
	MatchType       string   `json:"match_type"`
	Status          string   `json:"status"`
	MemberID        string   `json:"member_id,omitempty"`
	GroupID         string   `json:"group_id,omitempty"`
	AllocationNote  string   `json:"allocation_note,omitempty"`
	AllocatedBy     string   `json:"allocated_by,omitempty"`
	AllocatedAt     int64    `json:"allocated_at,omitempty"`
	DuplicateOf     string   `json:"duplicate_of,omitempty"`
	DuplicateReason string   `json:"duplicate_reason,omitempty"`
	CreatedAt       int64    `json:"created_at"`
}

func toTransactionJSON(tx *models.Transaction) *transactionJSON {
	if tx == nil {
		return nil
	}
	return &transactionJSON{
		ID:              tx.ID,
		InstitutionID:   tx.InstitutionID,
		OccurredAt:      tx.OccurredAt,
		AmountMinor:     tx.AmountMinor,
		Currency:        tx.Currency,
		PayerPhone:      tx.PayerPhone,
		PayerName:       tx.PayerName,
		MomoRef:         tx.MomoRef,
		Confidence:      tx.Confidence,
		MatchKey:        tx.MatchKey,
		MatchType:       tx.MatchType,
		Status:          string(tx.Status),
		MemberID:        tx.MemberID,
		GroupID:         tx.GroupID,
		AllocationNote:  tx.AllocationNote,
		AllocatedBy:     tx.AllocatedBy,
		AllocatedAt:     tx.AllocatedAt,
		DuplicateOf:     tx.DuplicateOf,
		DuplicateReason: tx.DuplicateReason,
		CreatedAt:       tx.CreatedAt,
	}
}

type parseFailureJSON struct {
	ID               string `json:"id"`
	InstitutionID    string `json:"institution_id"`
	ReceivedAt       int64  `json:"received_at"`
	SenderPhone      string `json:"sender_phone,omitempty"`
	RawText          string `json:"raw_text"`
	ParseError       string `json:"parse_error,omitempty"`
	Status           string `json:"parse_status"`
	ResolutionStatus string `json:"resolution_status,omitempty"`
	ResolutionNote   string `json:"resolution_note,omitempty"`
	TransactionID    string `json:"transaction_id,omitempty"`
	Attempts         int    `json:"attempts"`
}

func toParseFailureJSON(pf *models.ParseFailure) *parseFailureJSON {
	if pf == nil {
		return nil
	}
	return &parseFailureJSON{
		ID:               pf.ID,
		InstitutionID:    pf.InstitutionID,
		ReceivedAt:       pf.ReceivedAt,
		SenderPhone:      pf.SenderPhone,
		RawText:          pf.RawText,
		ParseError:       pf.ParseError,
		Status:           string(pf.Status),
		ResolutionStatus: pf.ResolutionStatus,
		ResolutionNote:   pf.ResolutionNote,
		TransactionID:    pf.TransactionID,
		Attempts:         pf.Attempts,
	}
}

type auditEntryJSON struct {
	ID            string `json:"id"`
	TransactionID string `json:"transaction_id"`
	Action        string `json:"action"`
	MemberID      string `json:"member_id"`
	GroupID       string `json:"group_id,omitempty"`
	ActorID       string `json:"actor_id"`
	Note          string `json:"note,omitempty"`
	CreatedAt     int64  `json:"created_at"`
}

func toAuditEntryJSON(e *models.AllocationAuditEntry) *auditEntryJSON {
	return &auditEntryJSON{
		ID:            e.ID,
		TransactionID: e.TransactionID,
		Action:        e.Action,
		MemberID:      e.MemberID,
		GroupID:       e.GroupID,
		ActorID:       e.ActorID,
		Note:          e.Note,
		CreatedAt:     e.CreatedAt,
	}
}

type suggestionJSON struct {
	MemberID       string  `json:"member_id"`
	MemberName     string  `json:"member_name"`
	MemberPhone    string  `json:"member_phone,omitempty"`
	GroupID        string  `json:"group_id,omitempty"`
	GroupName      string  `json:"group_name,omitempty"`
	BalanceMinor   int64   `json:"balance_minor"`
	NameSimilarity float64 `json:"name_similarity"`
}

func toSuggestionJSON(s *models.SuggestedMatch) *suggestionJSON {
	if s == nil {
		return nil
	}
	return &suggestionJSON{
		MemberID:       s.MemberID,
		MemberName:     s.MemberName,
		MemberPhone:    s.MemberPhone,
		GroupID:        s.GroupID,
		GroupName:      s.GroupName,
		BalanceMinor:   s.BalanceMinor,
		NameSimilarity: s.NameSimilarity,
	}
}

// ----- ingest -----

type ingestRequest struct {
	InstitutionID string `json:"institution_id,omitempty"`
	Sender        string `json:"sender"`
	Text          string `json:"text"`
	ReceivedAt    int64  `json:"received_at,omitempty"`
}

func (h *Handlers) handleIngest(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOr401(w, r)
	if !ok {
		return
	}
	var req ingestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	institutionID := req.InstitutionID
	if institutionID == "" {
		institutionID = scope.InstitutionID
	}
	if !scope.Allows(institutionID) {
		respondError(w, storage.ErrNotFound)
		return
	}

	var receivedAt time.Time
	if req.ReceivedAt > 0 {
		receivedAt = time.Unix(req.ReceivedAt, 0)
	}

	result, err := h.ingest.Ingest(r.Context(), institutionID, req.Sender, req.Text, receivedAt)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"transaction":   toTransactionJSON(result.Transaction),
		"parse_failure": toParseFailureJSON(result.ParseFailure),
	})
}

// ----- ledger reads -----

func (h *Handlers) handleListUnallocated(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOr401(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := storage.TransactionFilter{
		Query:  q.Get("q"),
		Cursor: q.Get("cursor"),
	}
	filter.From = parseIntParam(q.Get("from"))
	filter.To = parseIntParam(q.Get("to"))
	filter.Limit = int(parseIntParam(q.Get("limit")))

	txs, next, err := h.alloc.ListUnallocated(r.Context(), scope, filter)
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]*transactionJSON, len(txs))
	for i, tx := range txs {
		out[i] = toTransactionJSON(tx)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"transactions": out,
		"next_cursor":  next,
	})
}

func (h *Handlers) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOr401(w, r)
	if !ok {
		return
	}
	tx, err := h.alloc.Get(r.Context(), scope, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransactionJSON(tx))
}

func (h *Handlers) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOr401(w, r)
	if !ok {
		return
	}
	entries, err := h.alloc.AuditTrail(r.Context(), scope, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]*auditEntryJSON, len(entries))
	for i, e := range entries {
		out[i] = toAuditEntryJSON(e)
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": out})
}

// ----- allocation -----

type allocateRequest struct {
	MemberID string `json:"member_id"`
	Note     string `json:"note,omitempty"`
}

func (h *Handlers) handleAllocate(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOr401(w, r)
	if !ok {
		return
	}
	var req allocateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tx, err := h.alloc.Allocate(r.Context(), scope, r.PathValue("id"), req.MemberID, req.Note)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransactionJSON(tx))
}

type allocateBatchRequest struct {
	TransactionIDs []string `json:"transaction_ids"`
	MemberID       string   `json:"member_id"`
	Note           string   `json:"note,omitempty"`
}

type batchOutcomeJSON struct {
	TransactionID string           `json:"transaction_id"`
	Transaction   *transactionJSON `json:"transaction,omitempty"`
	Error         string           `json:"error,omitempty"`
}

func (h *Handlers) handleAllocateBatch(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOr401(w, r)
	if !ok {
		return
	}
	var req allocateBatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	outcomes, err := h.alloc.AllocateBatch(r.Context(), scope, req.TransactionIDs, req.MemberID, req.Note)
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]batchOutcomeJSON, len(outcomes))
	for i, o := range outcomes {
		out[i] = batchOutcomeJSON{
			TransactionID: o.TransactionID,
			Transaction:   toTransactionJSON(o.Transaction),
		}
		if o.Err != nil {
			out[i].Error = o.Err.Error()
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"outcomes": out})
}

type reverseRequest struct {
	Reason string `json:"reason"`
}

func (h *Handlers) handleReverse(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOr401(w, r)
	if !ok {
		return
	}
	var req reverseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tx, err := h.alloc.Reverse(r.Context(), scope, r.PathValue("id"), req.Reason)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransactionJSON(tx))
}

func (h *Handlers) handleFlag(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, true)
}

func (h *Handlers) handleUnflag(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, false)
}

func (h *Handlers) setFlag(w http.ResponseWriter, r *http.Request, flagged bool) {
	scope, ok := scopeOr401(w, r)
	if !ok {
		return
	}
	var (
		tx  *models.Transaction
		err error
	)
	if flagged {
		tx, err = h.alloc.Flag(r.Context(), scope, r.PathValue("id"))
	} else {
		tx, err = h.alloc.Unflag(r.Context(), scope, r.PathValue("id"))
	}
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransactionJSON(tx))
}

// ----- duplicates -----

type duplicateGroupJSON struct {
	MatchKey        string             `json:"match_key"`
	MatchType       string             `json:"match_type"`
	InstitutionID   string             `json:"institution_id"`
	Count           int                `json:"count"`
	FirstOccurredAt int64              `json:"first_occurred_at"`
	Transactions    []*transactionJSON `json:"transactions"`
}

func (h *Handlers) handleListDuplicates(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOr401(w, r)
	if !ok {
		return
	}
	groups, err := h.duplicates.ListPendingGroups(r.Context(), scope)
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]*duplicateGroupJSON, len(groups))
	for i, g := range groups {
		txs := make([]*transactionJSON, len(g.Transactions))
		for j, tx := range g.Transactions {
			txs[j] = toTransactionJSON(tx)
		}
		out[i] = &duplicateGroupJSON{
			MatchKey:        g.MatchKey,
			MatchType:       g.MatchType,
			InstitutionID:   g.InstitutionID,
			Count:           g.Count,
			FirstOccurredAt: g.FirstOccurredAt,
			Transactions:    txs,
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"groups": out})
}

type markDuplicateRequest struct {
	CanonicalID string `json:"canonical_id"`
	Reason      string `json:"reason,omitempty"`
}

func (h *Handlers) handleMarkDuplicate(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOr401(w, r)
	if !ok {
		return
	}
	var req markDuplicateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tx, err := h.duplicates.MarkDuplicate(r.Context(), scope, r.PathValue("id"), req.CanonicalID, req.Reason)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransactionJSON(tx))
}

func (h *Handlers) handleUnmarkDuplicate(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOr401(w, r)
	if !ok {
		return
	}
	tx, err := h.duplicates.UnmarkDuplicate(r.Context(), scope, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransactionJSON(tx))
}

// ----- suggestions -----

func (h *Handlers) handleSuggest(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOr401(w, r)
	if !ok {
		return
	}
	suggestion, err := h.suggest.Suggest(r.Context(), scope, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"suggestion": toSuggestionJSON(suggestion)})
}

// ----- parse failures -----

func (h *Handlers) handleListParseFailures(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOr401(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := storage.ParseFailureFilter{
		PendingOnly: q.Get("pending") == "true",
		Cursor:      q.Get("cursor"),
		Limit:       int(parseIntParam(q.Get("limit"))),
	}

	failures, next, err := h.recovery.List(r.Context(), scope, filter)
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]*parseFailureJSON, len(failures))
	for i, pf := range failures {
		out[i] = toParseFailureJSON(pf)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"parse_failures": out,
		"next_cursor":    next,
	})
}

func (h *Handlers) handleRetryParse(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOr401(w, r)
	if !ok {
		return
	}
	result, err := h.recovery.Retry(r.Context(), scope, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"parse_failure": toParseFailureJSON(result.ParseFailure),
		"transaction":   toTransactionJSON(result.Transaction),
	})
}

type resolveRequest struct {
	Resolution string `json:"resolution"`
	Note       string `json:"note,omitempty"`
}

func (h *Handlers) handleResolveParseFailure(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOr401(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pf, err := h.recovery.Resolve(r.Context(), scope, r.PathValue("id"), req.Resolution, req.Note)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toParseFailureJSON(pf))
}

// parseIntParam parses an integer query parameter, treating absent or
// malformed values as zero so filters simply stay unset.
func parseIntParam(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
