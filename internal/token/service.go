// Package token はトークンミントと口座操作のドメインロジックを提供する。
//
// クレームエンジンの外側にある通常の送金・発行を扱う。トレジャリーへの
// 入金はここを通る通常の送金であり、ベスティングの会計には関与しない。
package token

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/vestry/internal/address"
	"github.com/hitoshi/vestry/internal/model"
	"github.com/hitoshi/vestry/internal/repository"
)

// Service はトークン台帳操作のサービス層。
type Service struct {
	ledgerRepo repository.LedgerRepository
	now        func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(ledgerRepo repository.LedgerRepository) *Service {
	return &Service{
		ledgerRepo: ledgerRepo,
		now:        time.Now,
	}
}

// CreateMint は新しいトークンミントを作成する。
// 呼び出し元が発行権限者になる。ミントアドレスは(作成者, uuid)から
// 導出され、秘密鍵は存在しない。
func (s *Service) CreateMint(ctx context.Context, caller string, decimals uint8) (*model.TokenMint, error) {
	callerBytes, err := address.Parse(caller)
	if err != nil {
		return nil, model.NewInvalidAddressError("caller")
	}

	nonce := uuid.New()
	mintAddr, _, err := address.Derive(model.RecordKindTokenMint, callerBytes, nonce[:])
	if err != nil {
		if errors.Is(err, address.ErrExhausted) {
			return nil, model.NewDerivationFailedError()
		}
		return nil, err
	}

	mint := &model.TokenMint{
		Address:   mintAddr,
		Authority: caller,
		Decimals:  decimals,
		Supply:    0,
		CreatedAt: s.now().UTC(),
	}
	if err := s.ledgerRepo.CreateMint(ctx, mint); err != nil {
		return nil, fmt.Errorf("ミントの作成に失敗しました: %w", err)
	}

	return mint, nil
}

// MintTo はトークンを口座に新規発行する。ミント権限者のみが実行できる。
// 受取口座が存在しない場合は(受取人, ミント)から導出して作成する。
func (s *Service) MintTo(ctx context.Context, caller, mintAddr, owner string, amount uint64) (*model.TokenAccount, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	mint, err := s.ledgerRepo.FindMint(ctx, mintAddr)
	if err != nil {
		return nil, fmt.Errorf("ミントの取得に失敗しました: %w", err)
	}
	if mint == nil {
		return nil, model.NewMintNotFoundError(mintAddr)
	}
	if mint.Authority != caller {
		return nil, model.NewUnauthorizedError("発行できるのはミントの権限者のみです")
	}

	holding, err := s.ensureHolding(ctx, owner, mintAddr)
	if err != nil {
		return nil, err
	}

	if err := s.ledgerRepo.MintTo(ctx, mintAddr, holding.Address, amount); err != nil {
		return nil, err
	}

	return s.GetAccount(ctx, holding.Address)
}

// Transfer は呼び出し元が権限者である口座から別口座へトークンを移動する。
// 送金元と送金先は同一ミントでなければならない。
func (s *Service) Transfer(ctx context.Context, caller, fromAddr, toAddr string, amount uint64) error {
	if err := validateAmount(amount); err != nil {
		return err
	}

	from, err := s.ledgerRepo.FindAccount(ctx, fromAddr)
	if err != nil {
		return fmt.Errorf("送金元口座の取得に失敗しました: %w", err)
	}
	if from == nil {
		return model.NewAccountNotFoundError(fromAddr)
	}

	// 通常送金の権限者は署名済みの呼び出し元本人でなければならない。
	// 導出アドレスを権限者とする口座（トレジャリー等）はここでは動かせない
	if from.Authority != caller {
		return model.NewUnauthorizedError("送金できるのは口座の権限者のみです")
	}

	to, err := s.ledgerRepo.FindAccount(ctx, toAddr)
	if err != nil {
		return fmt.Errorf("送金先口座の取得に失敗しました: %w", err)
	}
	if to == nil {
		return model.NewAccountNotFoundError(toAddr)
	}
	if to.Mint != from.Mint {
		return model.NewAccountMismatchError("mint")
	}

	return s.ledgerRepo.Transfer(ctx, fromAddr, toAddr, amount)
}

// GetAccount は指定アドレスのトークン口座を返す。
func (s *Service) GetAccount(ctx context.Context, addr string) (*model.TokenAccount, error) {
	account, err := s.ledgerRepo.FindAccount(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("口座の取得に失敗しました: %w", err)
	}
	if account == nil {
		return nil, model.NewAccountNotFoundError(addr)
	}
	return account, nil
}

// ensureHolding は(所有者, ミント)の受取口座を導出し、なければ作成する。
func (s *Service) ensureHolding(ctx context.Context, owner, mintAddr string) (*model.TokenAccount, error) {
	holdingAddr, _, err := address.ForTokenHolding(owner, mintAddr)
	if err != nil {
		if errors.Is(err, address.ErrExhausted) {
			return nil, model.NewDerivationFailedError()
		}
		return nil, model.NewInvalidAddressError("owner")
	}

	account := &model.TokenAccount{
		Address:   holdingAddr,
		Mint:      mintAddr,
		Authority: owner,
		Balance:   0,
		CreatedAt: s.now().UTC(),
	}
	if err := s.ledgerRepo.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("受取口座の作成に失敗しました: %w", err)
	}

	return account, nil
}

// validateAmount はトークン量を検証する。台帳の数値表現の上限も確認する。
func validateAmount(amount uint64) error {
	if amount == 0 {
		return model.NewInvalidAmountError()
	}
	if amount > math.MaxInt64 {
		return model.NewInvalidAmountError()
	}
	return nil
}
