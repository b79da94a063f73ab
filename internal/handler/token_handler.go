package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/vestry/internal/middleware"
	"github.com/hitoshi/vestry/internal/model"
)

// TokenServiceInterface はトークンハンドラーが必要とするサービスインターフェース。
type TokenServiceInterface interface {
	// CreateMint は新しいトークンミントを作成する。
	CreateMint(ctx context.Context, caller string, decimals uint8) (*model.TokenMint, error)
	// MintTo はトークンを口座に新規発行する。
	MintTo(ctx context.Context, caller, mintAddr, owner string, amount uint64) (*model.TokenAccount, error)
	// Transfer は口座間でトークンを移動する。
	Transfer(ctx context.Context, caller, fromAddr, toAddr string, amount uint64) error
	// GetAccount は指定アドレスのトークン口座を返す。
	GetAccount(ctx context.Context, addr string) (*model.TokenAccount, error)
}

// TokenHandler はトークン台帳のHTTPハンドラー。
type TokenHandler struct {
	service TokenServiceInterface
}

// NewTokenHandler はTokenHandlerを生成する。
func NewTokenHandler(service TokenServiceInterface) *TokenHandler {
	return &TokenHandler{service: service}
}

// createMintRequest はミント作成リクエストのボディ。
type createMintRequest struct {
	Decimals uint8 `json:"decimals"`
}

// mintToRequest はトークン発行リクエストのボディ。
type mintToRequest struct {
	Mint   string `json:"mint"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// transferRequest はトークン送金リクエストのボディ。
type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// mintResponse はミント情報のAPIレスポンス。
type mintResponse struct {
	Address   string `json:"address"`
	Authority string `json:"authority"`
	Decimals  uint8  `json:"decimals"`
	Supply    uint64 `json:"supply"`
	CreatedAt string `json:"created_at"`
}

// accountResponse はトークン口座のAPIレスポンス。
type accountResponse struct {
	Address   string `json:"address"`
	Mint      string `json:"mint"`
	Authority string `json:"authority"`
	Balance   uint64 `json:"balance"`
	CreatedAt string `json:"created_at"`
}

// CreateMint はトークンミントの作成を処理する。
// POST /api/tokens/mints
func (h *TokenHandler) CreateMint(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.CallerFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req createMintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	mint, err := h.service.CreateMint(r.Context(), caller, req.Decimals)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(mintResponse{
		Address:   mint.Address,
		Authority: mint.Authority,
		Decimals:  mint.Decimals,
		Supply:    mint.Supply,
		CreatedAt: mint.CreatedAt.Format(time.RFC3339),
	})
}

// MintTo はトークンの新規発行を処理する。
// POST /api/tokens/mint
func (h *TokenHandler) MintTo(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.CallerFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req mintToRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	account, err := h.service.MintTo(r.Context(), caller, req.Mint, req.To, req.Amount)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAccountResponse(account))
}

// Transfer はトークンの送金を処理する。
// POST /api/tokens/transfer
func (h *TokenHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.CallerFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	if err := h.service.Transfer(r.Context(), caller, req.From, req.To, req.Amount); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetAccount はトークン口座の詳細を取得する。
// GET /api/tokens/accounts/:address
func (h *TokenHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")

	account, err := h.service.GetAccount(r.Context(), addr)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAccountResponse(account))
}

// toAccountResponse はmodel.TokenAccountからAPIレスポンスに変換する。
func toAccountResponse(account *model.TokenAccount) accountResponse {
	return accountResponse{
		Address:   account.Address,
		Mint:      account.Mint,
		Authority: account.Authority,
		Balance:   account.Balance,
		CreatedAt: account.CreatedAt.Format(time.RFC3339),
	}
}
