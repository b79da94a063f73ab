// Package handler はHTTP APIハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/vestry/internal/middleware"
	"github.com/hitoshi/vestry/internal/model"
)

// CompanyServiceInterface は企業ハンドラーが必要とするサービスインターフェース。
type CompanyServiceInterface interface {
	// CreateCompany は企業レコードとトレジャリー口座を作成する。
	CreateCompany(ctx context.Context, caller, companyName, mintAddr string) (*model.Company, error)
	// GetCompany は企業レコードと現在のトレジャリー残高を返す。
	GetCompany(ctx context.Context, companyName string) (*model.Company, uint64, error)
}

// CompanyHandler は企業ベスティングレジストリのHTTPハンドラー。
type CompanyHandler struct {
	service CompanyServiceInterface
}

// NewCompanyHandler はCompanyHandlerを生成する。
func NewCompanyHandler(service CompanyServiceInterface) *CompanyHandler {
	return &CompanyHandler{service: service}
}

// createCompanyRequest は企業作成リクエストのボディ。
type createCompanyRequest struct {
	CompanyName string `json:"company_name"`
	Mint        string `json:"mint"`
}

// companyResponse は企業レコードのAPIレスポンス。
type companyResponse struct {
	Address         string `json:"address"`
	Owner           string `json:"owner"`
	Mint            string `json:"mint"`
	TreasuryAccount string `json:"treasury_account"`
	CompanyName     string `json:"company_name"`
	TreasuryBalance uint64 `json:"treasury_balance"`
	CreatedAt       string `json:"created_at"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// CreateCompany は企業レコードの作成を処理する。
// POST /api/companies
func (h *CompanyHandler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.CallerFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req createCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	company, err := h.service.CreateCompany(r.Context(), caller, req.CompanyName, req.Mint)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toCompanyResponse(company, 0))
}

// GetCompany は企業レコードの詳細を取得する。
// GET /api/companies/:name
func (h *CompanyHandler) GetCompany(w http.ResponseWriter, r *http.Request) {
	companyName := chi.URLParam(r, "name")

	company, balance, err := h.service.GetCompany(r.Context(), companyName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toCompanyResponse(company, balance))
}

// --- ヘルパー関数 ---

// toCompanyResponse はmodel.CompanyからAPIレスポンスに変換する。
func toCompanyResponse(company *model.Company, treasuryBalance uint64) companyResponse {
	return companyResponse{
		Address:         company.Address,
		Owner:           company.Owner,
		Mint:            company.Mint,
		TreasuryAccount: company.TreasuryAccount,
		CompanyName:     company.CompanyName,
		TreasuryBalance: treasuryBalance,
		CreatedAt:       company.CreatedAt.Format(time.RFC3339),
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeUnauthorizedResponse は署名検証済みの呼び出し元が見つからない場合の401を書き込む。
func writeUnauthorizedResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     model.ErrCodeUnauthorized,
		Message:  "署名検証済みのリクエストが必要です。",
		Category: "auth",
		Action:   "リクエストに署名ヘッダーを付与してください。",
	})
}

// writeInvalidRequestResponse はボディ解析失敗時の400を書き込む。
func writeInvalidRequestResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidVestingTime,
		model.ErrCodeInvalidCliffTime,
		model.ErrCodeInvalidAmount,
		model.ErrCodeInvalidCompanyName,
		model.ErrCodeInvalidAddress:
		return http.StatusBadRequest
	case model.ErrCodeCompanyExists, model.ErrCodeEmployeeExists:
		return http.StatusConflict
	case model.ErrCodeCompanyNotFound,
		model.ErrCodeEmployeeNotFound,
		model.ErrCodeMintNotFound,
		model.ErrCodeAccountNotFound:
		return http.StatusNotFound
	case model.ErrCodeCliffNotPast:
		return http.StatusUnprocessableEntity
	case model.ErrCodeDepleted, model.ErrCodeInsufficientFunds:
		return http.StatusConflict
	case model.ErrCodeUnauthorized, model.ErrCodeAccountMismatch:
		return http.StatusForbidden
	case model.ErrCodeAmountOverflow:
		return http.StatusUnprocessableEntity
	case model.ErrCodeDerivationFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
