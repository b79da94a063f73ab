// Package company は企業ベスティングレジストリのドメインロジックを提供する。
package company

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/vestry/internal/address"
	"github.com/hitoshi/vestry/internal/metrics"
	"github.com/hitoshi/vestry/internal/model"
	"github.com/hitoshi/vestry/internal/repository"
)

// Service は企業レコード管理のサービス層。
// 企業レコードの作成とトレジャリー口座の初期化のビジネスロジックを提供する。
type Service struct {
	companyRepo repository.CompanyRepository
	ledgerRepo  repository.LedgerRepository
	recorder    metrics.Recorder
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// recorderはnilでもよい。
func NewService(companyRepo repository.CompanyRepository, ledgerRepo repository.LedgerRepository, recorder metrics.Recorder) *Service {
	return &Service{
		companyRepo: companyRepo,
		ledgerRepo:  ledgerRepo,
		recorder:    recorder,
		now:         time.Now,
	}
}

// CreateCompany は企業レコードとトレジャリー口座を作成する。
//
// 企業名とトレジャリーのアドレスは企業名から決定論的に導出され、
// トレジャリーの支出権限者は自身の導出アドレスになる。これにより
// 秘密鍵の存在しない口座が企業の未請求トークンを保管し、同じシードを
// 提示できるクレームエンジンだけが払い出しを承認できる。
// 作成は原子的で、検証に失敗した場合は一切の状態を書き込まない。
func (s *Service) CreateCompany(ctx context.Context, caller, companyName, mintAddr string) (*model.Company, error) {
	if companyName == "" {
		return nil, model.NewInvalidCompanyNameError("企業名が空です")
	}
	if len(companyName) > model.MaxCompanyNameBytes {
		return nil, model.NewInvalidCompanyNameError(fmt.Sprintf("%dバイトを超えています", model.MaxCompanyNameBytes))
	}
	if !address.IsValid(mintAddr) {
		return nil, model.NewInvalidAddressError("mint")
	}

	mint, err := s.ledgerRepo.FindMint(ctx, mintAddr)
	if err != nil {
		return nil, fmt.Errorf("ミントの取得に失敗しました: %w", err)
	}
	if mint == nil {
		return nil, model.NewMintNotFoundError(mintAddr)
	}

	companyAddr, bump, err := address.ForCompany(companyName)
	if err != nil {
		return nil, wrapDerivationError(err)
	}
	treasuryAddr, treasuryBump, err := address.ForTreasury(companyName)
	if err != nil {
		return nil, wrapDerivationError(err)
	}

	now := s.now().UTC()
	company := &model.Company{
		Address:         companyAddr,
		Owner:           caller,
		Mint:            mintAddr,
		TreasuryAccount: treasuryAddr,
		CompanyName:     companyName,
		Bump:            bump,
		TreasuryBump:    treasuryBump,
		CreatedAt:       now,
	}
	treasury := &model.TokenAccount{
		Address:   treasuryAddr,
		Mint:      mintAddr,
		Authority: treasuryAddr, // 支出権限は口座自身の導出アドレス
		Balance:   0,
		CreatedAt: now,
	}

	if err := s.companyRepo.CreateWithTreasury(ctx, company, treasury); err != nil {
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.RecordCompanyCreated()
	}

	return company, nil
}

// GetCompany は企業レコードと現在のトレジャリー残高を返す。
func (s *Service) GetCompany(ctx context.Context, companyName string) (*model.Company, uint64, error) {
	company, err := s.companyRepo.FindByName(ctx, companyName)
	if err != nil {
		return nil, 0, fmt.Errorf("企業レコードの取得に失敗しました: %w", err)
	}
	if company == nil {
		return nil, 0, model.NewCompanyNotFoundError(companyName)
	}

	treasury, err := s.ledgerRepo.FindAccount(ctx, company.TreasuryAccount)
	if err != nil {
		return nil, 0, fmt.Errorf("トレジャリー口座の取得に失敗しました: %w", err)
	}
	if treasury == nil {
		return nil, 0, model.NewAccountNotFoundError(company.TreasuryAccount)
	}

	return company, treasury.Balance, nil
}

// wrapDerivationError はアドレス導出エラーをAPIエラーに変換する。
func wrapDerivationError(err error) error {
	if errors.Is(err, address.ErrExhausted) {
		return model.NewDerivationFailedError()
	}
	return err
}
