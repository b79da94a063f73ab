package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/vestry/internal/middleware"
)

// HealthChecker はヘルスチェックで疎通確認する依存のインターフェース。
// *sql.DBがこれを満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// ドメインサービス
	CompanyService  CompanyServiceInterface
	EmployeeService EmployeeServiceInterface
	ClaimService    ClaimServiceInterface
	TokenService    TokenServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Signature → RateLimit(General)
//
// ヘルスチェック（/health）は署名検証の外に配置する。
// レコード作成系エンドポイントには作成専用レート制限を追加で適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))

	companyHandler := NewCompanyHandler(deps.CompanyService)
	employeeHandler := NewEmployeeHandler(deps.EmployeeService)
	claimHandler := NewClaimHandler(deps.ClaimService)
	tokenHandler := NewTokenHandler(deps.TokenService)

	// --- 署名不要のルート ---
	r.Get("/health", newHealthHandler(deps.HealthChecker))

	// --- 署名検証が必要なルート ---
	// ミドルウェアスタック: Signature → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSignatureMiddleware())
		r.Use(deps.RateLimiter.GeneralMiddleware())

		creation := deps.RateLimiter.CreationMiddleware()

		// 企業レジストリ
		r.Route("/api/companies", func(r chi.Router) {
			// POST /api/companies - 企業レコード作成（作成専用レート制限を追加）
			r.With(creation).Post("/", companyHandler.CreateCompany)

			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", companyHandler.GetCompany)

				// 従業員レジストリ
				r.With(creation).Post("/employees", employeeHandler.CreateEmployee)
				r.Route("/employees/{beneficiary}", func(r chi.Router) {
					r.Get("/", employeeHandler.GetEmployee)
					r.Get("/claims", claimHandler.History)
				})
			})
		})

		// クレームエンジン
		r.Post("/api/claims", claimHandler.Claim)

		// トークン台帳
		r.Route("/api/tokens", func(r chi.Router) {
			r.With(creation).Post("/mints", tokenHandler.CreateMint)
			r.Post("/mint", tokenHandler.MintTo)
			r.Post("/transfer", tokenHandler.Transfer)
			r.Get("/accounts/{address}", tokenHandler.GetAccount)
		})
	})

	return r
}

// newHealthHandler はDB疎通確認付きのヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		statusCode := http.StatusOK
		if checker != nil {
			if err := checker.PingContext(ctx); err != nil {
				status = "unavailable"
				statusCode = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
