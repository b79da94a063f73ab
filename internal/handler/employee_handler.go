package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/vestry/internal/employee"
	"github.com/hitoshi/vestry/internal/middleware"
	"github.com/hitoshi/vestry/internal/model"
	"github.com/hitoshi/vestry/internal/vesting"
)

// EmployeeServiceInterface は従業員ハンドラーが必要とするサービスインターフェース。
type EmployeeServiceInterface interface {
	// CreateEmployee は従業員ベスティングレコードを作成する。
	CreateEmployee(ctx context.Context, caller, companyName, beneficiary string, schedule vesting.Schedule) (*model.Employee, error)
	// GetEmployee は従業員レコードを現在のベスティング状況付きで返す。
	GetEmployee(ctx context.Context, companyName, beneficiary string) (*employee.EmployeeInfo, error)
}

// EmployeeHandler は従業員ベスティングレジストリのHTTPハンドラー。
type EmployeeHandler struct {
	service EmployeeServiceInterface
}

// NewEmployeeHandler はEmployeeHandlerを生成する。
func NewEmployeeHandler(service EmployeeServiceInterface) *EmployeeHandler {
	return &EmployeeHandler{service: service}
}

// createEmployeeRequest は従業員レコード作成リクエストのボディ。
type createEmployeeRequest struct {
	Beneficiary string `json:"beneficiary"`
	StartTime   int64  `json:"start_time"`
	CliffTime   int64  `json:"cliff_time"`
	EndTime     int64  `json:"end_time"`
	TotalAmount uint64 `json:"total_amount"`
}

// employeeResponse は従業員レコードのAPIレスポンス。
type employeeResponse struct {
	Address        string `json:"address"`
	Beneficiary    string `json:"beneficiary"`
	CompanyAddress string `json:"company_address"`
	StartTime      int64  `json:"start_time"`
	CliffTime      int64  `json:"cliff_time"`
	EndTime        int64  `json:"end_time"`
	TotalAmount    uint64 `json:"total_amount"`
	TotalWithdrawn uint64 `json:"total_withdrawn"`
	State          string `json:"state,omitempty"`
	VestedNow      uint64 `json:"vested_now"`
	Claimable      uint64 `json:"claimable"`
	CreatedAt      string `json:"created_at"`
}

// CreateEmployee は従業員レコードの作成を処理する。
// POST /api/companies/:name/employees
func (h *EmployeeHandler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.CallerFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	companyName := chi.URLParam(r, "name")

	var req createEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	schedule := vesting.Schedule{
		StartTime:   req.StartTime,
		CliffTime:   req.CliffTime,
		EndTime:     req.EndTime,
		TotalAmount: req.TotalAmount,
	}

	emp, err := h.service.CreateEmployee(r.Context(), caller, companyName, req.Beneficiary, schedule)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toEmployeeResponse(emp))
}

// GetEmployee は従業員レコードの詳細をベスティング状況付きで取得する。
// GET /api/companies/:name/employees/:beneficiary
func (h *EmployeeHandler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	companyName := chi.URLParam(r, "name")
	beneficiary := chi.URLParam(r, "beneficiary")

	info, err := h.service.GetEmployee(r.Context(), companyName, beneficiary)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := toEmployeeResponse(info.Employee)
	resp.State = string(info.State)
	resp.VestedNow = info.VestedNow
	resp.Claimable = info.Claimable

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// toEmployeeResponse はmodel.EmployeeからAPIレスポンスに変換する。
func toEmployeeResponse(emp *model.Employee) employeeResponse {
	return employeeResponse{
		Address:        emp.Address,
		Beneficiary:    emp.Beneficiary,
		CompanyAddress: emp.CompanyAddress,
		StartTime:      emp.StartTime,
		CliffTime:      emp.CliffTime,
		EndTime:        emp.EndTime,
		TotalAmount:    emp.TotalAmount,
		TotalWithdrawn: emp.TotalWithdrawn,
		CreatedAt:      emp.CreatedAt.Format(time.RFC3339),
	}
}
