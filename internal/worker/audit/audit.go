// Package audit はトレジャリー残高の監査ジョブを提供する。
// 各企業の未払い債務（全従業員のtotal_amount - total_withdrawnの合計）と
// トレジャリー残高を定期的に突き合わせ、資金不足の企業を検出する。
// 検出は警告ログとメトリクスに記録するのみで、状態は一切変更しない。
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/vestry/internal/repository"
)

// Gauge は資金不足企業数のゲージを抽象化するインターフェース。
type Gauge interface {
	SetUnderfundedCompanies(count int)
}

// AuditJob はトレジャリー残高の定期監査ジョブ。
// 読み取り専用であり、何度実行しても安全。
type AuditJob struct {
	companyRepo  repository.CompanyRepository
	employeeRepo repository.EmployeeRepository
	ledgerRepo   repository.LedgerRepository
	gauge        Gauge
	logger       *slog.Logger
}

// NewAuditJob は新しいAuditJobを生成する。
// gaugeはnilでもよい。
func NewAuditJob(
	companyRepo repository.CompanyRepository,
	employeeRepo repository.EmployeeRepository,
	ledgerRepo repository.LedgerRepository,
	gauge Gauge,
	logger *slog.Logger,
) *AuditJob {
	return &AuditJob{
		companyRepo:  companyRepo,
		employeeRepo: employeeRepo,
		ledgerRepo:   ledgerRepo,
		gauge:        gauge,
		logger:       logger,
	}
}

// Run は全企業のトレジャリー残高を監査する。
// 未払い債務が残高を上回る企業ごとに警告ログを出力し、
// 資金不足企業の総数をゲージに反映する。
func (j *AuditJob) Run(ctx context.Context) error {
	start := time.Now()

	companies, err := j.companyRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("企業一覧の取得に失敗: %w", err)
	}

	underfunded := 0
	for _, company := range companies {
		obligation, err := j.outstandingObligation(ctx, company.Address)
		if err != nil {
			j.logger.Error("債務の集計に失敗しました",
				slog.String("company", company.CompanyName),
				slog.String("error", err.Error()),
			)
			continue
		}

		treasury, err := j.ledgerRepo.FindAccount(ctx, company.TreasuryAccount)
		if err != nil {
			j.logger.Error("トレジャリー口座の取得に失敗しました",
				slog.String("company", company.CompanyName),
				slog.String("error", err.Error()),
			)
			continue
		}

		balance := uint64(0)
		if treasury != nil {
			balance = treasury.Balance
		}

		if obligation > balance {
			underfunded++
			j.logger.Warn("トレジャリーの資金が未払い債務を下回っています",
				slog.String("company", company.CompanyName),
				slog.String("treasury", company.TreasuryAccount),
				slog.Uint64("obligation", obligation),
				slog.Uint64("balance", balance),
				slog.Uint64("shortfall", obligation-balance),
			)
		}
	}

	if j.gauge != nil {
		j.gauge.SetUnderfundedCompanies(underfunded)
	}

	j.logger.Info("トレジャリー監査ジョブが完了しました",
		slog.Int("companies", len(companies)),
		slog.Int("underfunded", underfunded),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// outstandingObligation は企業の未払い債務を集計する。
// 各従業員レコードのtotal_amount - total_withdrawnの合計。
func (j *AuditJob) outstandingObligation(ctx context.Context, companyAddr string) (uint64, error) {
	employees, err := j.employeeRepo.ListByCompany(ctx, companyAddr)
	if err != nil {
		return 0, err
	}

	var total uint64
	for _, emp := range employees {
		if emp.TotalAmount > emp.TotalWithdrawn {
			total += emp.TotalAmount - emp.TotalWithdrawn
		}
	}
	return total, nil
}
