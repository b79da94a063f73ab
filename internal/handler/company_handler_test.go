package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/vestry/internal/middleware"
	"github.com/hitoshi/vestry/internal/model"
)

// --- モック ---

type mockCompanyService struct {
	createCompanyFn func(ctx context.Context, caller, companyName, mintAddr string) (*model.Company, error)
	getCompanyFn    func(ctx context.Context, companyName string) (*model.Company, uint64, error)
}

func (m *mockCompanyService) CreateCompany(ctx context.Context, caller, companyName, mintAddr string) (*model.Company, error) {
	if m.createCompanyFn != nil {
		return m.createCompanyFn(ctx, caller, companyName, mintAddr)
	}
	return nil, nil
}

func (m *mockCompanyService) GetCompany(ctx context.Context, companyName string) (*model.Company, uint64, error) {
	if m.getCompanyFn != nil {
		return m.getCompanyFn(ctx, companyName)
	}
	return nil, 0, nil
}

// --- テストヘルパー ---

const testCaller = "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"

// signedContextRequest は署名検証済みの呼び出し元が注入されたリクエストを構築する。
func signedContextRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(middleware.ContextWithCaller(req.Context(), testCaller))
}

func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) apiErrorResponse {
	t.Helper()
	var resp apiErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v\nraw: %s", err, rec.Body.String())
	}
	return resp
}

func sampleCompany() *model.Company {
	return &model.Company{
		Address:         strings.Repeat("11", 32),
		Owner:           testCaller,
		Mint:            strings.Repeat("22", 32),
		TreasuryAccount: strings.Repeat("33", 32),
		CompanyName:     "acme",
		Bump:            255,
		TreasuryBump:    254,
		CreatedAt:       time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC),
	}
}

// --- テスト ---

func TestCreateCompany_Success(t *testing.T) {
	company := sampleCompany()
	var gotCaller, gotName, gotMint string
	service := &mockCompanyService{
		createCompanyFn: func(ctx context.Context, caller, companyName, mintAddr string) (*model.Company, error) {
			gotCaller = caller
			gotName = companyName
			gotMint = mintAddr
			return company, nil
		},
	}
	h := NewCompanyHandler(service)

	req := signedContextRequest(http.MethodPost, "/api/companies", `{"company_name":"acme","mint":"`+company.Mint+`"}`)
	rec := httptest.NewRecorder()
	h.CreateCompany(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201\nbody: %s", rec.Code, rec.Body.String())
	}
	if gotCaller != testCaller {
		t.Errorf("caller = %q, want %q", gotCaller, testCaller)
	}
	if gotName != "acme" || gotMint != company.Mint {
		t.Errorf("service called with (%q, %q), want (acme, %q)", gotName, gotMint, company.Mint)
	}

	var resp companyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Address != company.Address {
		t.Errorf("address = %q, want %q", resp.Address, company.Address)
	}
	if resp.TreasuryAccount != company.TreasuryAccount {
		t.Errorf("treasury_account = %q, want %q", resp.TreasuryAccount, company.TreasuryAccount)
	}
	if resp.CreatedAt != "2026-01-15T09:30:00Z" {
		t.Errorf("created_at = %q, want RFC3339", resp.CreatedAt)
	}
}

func TestCreateCompany_WithoutCaller_Unauthorized(t *testing.T) {
	h := NewCompanyHandler(&mockCompanyService{})

	req := httptest.NewRequest(http.MethodPost, "/api/companies", strings.NewReader(`{"company_name":"acme"}`))
	rec := httptest.NewRecorder()
	h.CreateCompany(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestCreateCompany_MalformedBody(t *testing.T) {
	h := NewCompanyHandler(&mockCompanyService{})

	req := signedContextRequest(http.MethodPost, "/api/companies", `{not json`)
	rec := httptest.NewRecorder()
	h.CreateCompany(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateCompany_ServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{"企業名重複", model.NewCompanyExistsError("acme"), http.StatusConflict, model.ErrCodeCompanyExists},
		{"企業名不正", model.NewInvalidCompanyNameError("too long"), http.StatusBadRequest, model.ErrCodeInvalidCompanyName},
		{"ミント未検出", model.NewMintNotFoundError("m"), http.StatusNotFound, model.ErrCodeMintNotFound},
		{"導出失敗", model.NewDerivationFailedError(), http.StatusServiceUnavailable, model.ErrCodeDerivationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &mockCompanyService{
				createCompanyFn: func(ctx context.Context, caller, companyName, mintAddr string) (*model.Company, error) {
					return nil, tt.serviceErr
				},
			}
			h := NewCompanyHandler(service)

			req := signedContextRequest(http.MethodPost, "/api/companies", `{"company_name":"acme","mint":"x"}`)
			rec := httptest.NewRecorder()
			h.CreateCompany(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if resp := decodeErrorResponse(t, rec); resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestGetCompany_ReturnsTreasuryBalance(t *testing.T) {
	company := sampleCompany()
	service := &mockCompanyService{
		getCompanyFn: func(ctx context.Context, companyName string) (*model.Company, uint64, error) {
			if companyName != "acme" {
				t.Errorf("company name = %q, want acme", companyName)
			}
			return company, 4200, nil
		},
	}

	r := chi.NewRouter()
	r.Get("/api/companies/{name}", NewCompanyHandler(service).GetCompany)

	req := httptest.NewRequest(http.MethodGet, "/api/companies/acme", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp companyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.TreasuryBalance != 4200 {
		t.Errorf("treasury_balance = %d, want 4200", resp.TreasuryBalance)
	}
}

func TestGetCompany_NotFound(t *testing.T) {
	service := &mockCompanyService{
		getCompanyFn: func(ctx context.Context, companyName string) (*model.Company, uint64, error) {
			return nil, 0, model.NewCompanyNotFoundError(companyName)
		},
	}

	r := chi.NewRouter()
	r.Get("/api/companies/{name}", NewCompanyHandler(service).GetCompany)

	req := httptest.NewRequest(http.MethodGet, "/api/companies/ghost", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if resp := decodeErrorResponse(t, rec); resp.Code != model.ErrCodeCompanyNotFound {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodeCompanyNotFound)
	}
}
