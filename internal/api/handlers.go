package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/punchamoorthee/transactflow/internal/auth"
	"github.com/punchamoorthee/transactflow/internal/domain"
)

const (
	maxBodyBytes      = 64 << 10
	maxIdempotencyKey = 255
)

type Transferrer interface {
	Transfer(ctx context.Context, sender string, req domain.TransferRequest) (*domain.TransferResult, error)
}

type Querier interface {
	History(ctx context.Context, identity string) ([]domain.HistoryEntry, error)
	Sent(ctx context.Context, identity string) ([]domain.HistoryEntry, error)
	Received(ctx context.Context, identity string) ([]domain.HistoryEntry, error)
	WalletBalance(ctx context.Context, identity string) (*domain.WalletBalance, error)
}

type TokenIssuer interface {
	Issue(identity string) (string, time.Time, error)
}

type Handler struct {
	transfers Transferrer
	queries   Querier
	tokens    TokenIssuer
	logger    *slog.Logger
}

func NewHandler(transfers Transferrer, queries Querier, tokens TokenIssuer, logger *slog.Logger) *Handler {
	return &Handler{transfers: transfers, queries: queries, tokens: tokens, logger: logger}
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CreateTransferHandler(w http.ResponseWriter, r *http.Request) {
	sender := auth.PrincipalFrom(r.Context()).Identity

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if len(idempotencyKey) > maxIdempotencyKey {
		respondWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Idempotency-Key must be at most 255 characters")
		return
	}

	bodyBytes, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to read request body")
		return
	}
	r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	hash := sha256.Sum256(bodyBytes)

	var req domain.TransferRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Malformed JSON body")
		return
	}
	req.IdempotencyKey = idempotencyKey
	req.RequestHash = hex.EncodeToString(hash[:])

	res, err := h.transfers.Transfer(r.Context(), sender, req)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	if res.Replayed {
		respondWithJSON(w, http.StatusOK, res)
		return
	}
	respondWithJSON(w, http.StatusCreated, res)
}

func (h *Handler) WalletBalanceHandler(w http.ResponseWriter, r *http.Request) {
	identity := auth.PrincipalFrom(r.Context()).Identity
	wb, err := h.queries.WalletBalance(r.Context(), identity)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, wb)
}

func (h *Handler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	h.listHistory(w, r, h.queries.History)
}

func (h *Handler) SentHandler(w http.ResponseWriter, r *http.Request) {
	h.listHistory(w, r, h.queries.Sent)
}

func (h *Handler) ReceivedHandler(w http.ResponseWriter, r *http.Request) {
	h.listHistory(w, r, h.queries.Received)
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request, list func(context.Context, string) ([]domain.HistoryEntry, error)) {
	identity := auth.PrincipalFrom(r.Context()).Identity
	entries, err := list(r.Context(), identity)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

type tokenRequest struct {
	Identity string `json:"identity"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
	Identity  string    `json:"identity"`
}

// DevTokenHandler mints a bearer token for any identity. Only routed in dev mode.
func (h *Handler) DevTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Malformed JSON body")
		return
	}
	req.Identity = strings.TrimSpace(req.Identity)
	if req.Identity == "" {
		respondWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Identity is required")
		return
	}

	token, exp, err := h.tokens.Issue(req.Identity)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: exp,
		Identity:  req.Identity,
	})
}
