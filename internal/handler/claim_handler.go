package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/vestry/internal/claim"
	"github.com/hitoshi/vestry/internal/middleware"
	"github.com/hitoshi/vestry/internal/model"
)

// ClaimServiceInterface はクレームハンドラーが必要とするサービスインターフェース。
type ClaimServiceInterface interface {
	// Claim はベスティング済みトークンの請求を実行する。
	Claim(ctx context.Context, caller, companyName string) (*claim.Result, error)
	// History は従業員レコードのクレーム履歴を返す。
	History(ctx context.Context, companyName, beneficiary string, limit int) ([]*model.ClaimRecord, error)
}

// ClaimHandler はクレームエンジンのHTTPハンドラー。
type ClaimHandler struct {
	service ClaimServiceInterface
}

// NewClaimHandler はClaimHandlerを生成する。
func NewClaimHandler(service ClaimServiceInterface) *ClaimHandler {
	return &ClaimHandler{service: service}
}

// claimRequest はクレーム実行リクエストのボディ。
// 受益者はリクエストボディではなく署名から決定される。
type claimRequest struct {
	CompanyName string `json:"company_name"`
}

// claimResponse はクレーム実行結果のAPIレスポンス。
type claimResponse struct {
	Claimed           uint64 `json:"claimed"`
	VestedNow         uint64 `json:"vested_now"`
	TotalWithdrawn    uint64 `json:"total_withdrawn"`
	DestinationTokens string `json:"destination_tokens"`
	JournalID         string `json:"journal_id,omitempty"`
}

// claimRecordResponse はクレーム履歴1件のAPIレスポンス。
type claimRecordResponse struct {
	ID            string `json:"id"`
	Amount        uint64 `json:"amount"`
	VestedAtClaim uint64 `json:"vested_at_claim"`
	ClaimedAt     string `json:"claimed_at"`
}

// Claim はベスティング済みトークンの請求を処理する。
// POST /api/claims
//
// 請求可能額が0の場合も200を返す。claimedが0のレスポンスは
// 状態を一切変更していない無害なno-opを表す。
func (h *ClaimHandler) Claim(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.CallerFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	if req.CompanyName == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidCompanyNameError("企業名が空です"))
		return
	}

	result, err := h.service.Claim(r.Context(), caller, req.CompanyName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(claimResponse{
		Claimed:           result.Claimable,
		VestedNow:         result.VestedNow,
		TotalWithdrawn:    result.TotalWithdrawn,
		DestinationTokens: result.DestinationTokens,
		JournalID:         result.JournalID,
	})
}

// History はクレーム履歴を取得する。
// GET /api/companies/:name/employees/:beneficiary/claims
func (h *ClaimHandler) History(w http.ResponseWriter, r *http.Request) {
	companyName := chi.URLParam(r, "name")
	beneficiary := chi.URLParam(r, "beneficiary")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	records, err := h.service.History(r.Context(), companyName, beneficiary, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]claimRecordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, claimRecordResponse{
			ID:            rec.ID,
			Amount:        rec.Amount,
			VestedAtClaim: rec.VestedAtClaim,
			ClaimedAt:     rec.ClaimedAt.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"claims": resp})
}
