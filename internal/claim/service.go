// Package claim はベスティング済みトークンの請求エンジンを提供する。
//
// クレームは単一の原子的な状態遷移として実行される。従業員レコードと
// トレジャリー口座の行ロックにより、同一レコードへの並行クレームは
// 直列化され、後続のクレームは必ず更新済みのtotal_withdrawnを観測する。
// total_withdrawnは毎回vested(now)から再計算されるため、リトライは
// 常に安全で、二重払いは発生しない。
package claim

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/vestry/internal/address"
	"github.com/hitoshi/vestry/internal/metrics"
	"github.com/hitoshi/vestry/internal/model"
	"github.com/hitoshi/vestry/internal/repository"
	"github.com/hitoshi/vestry/internal/vesting"
)

// Service はクレームエンジンのサービス層。
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

// Result はクレームの実行結果。
type Result struct {
	Claimable         uint64 // 今回払い出された量（no-opの場合は0）
	VestedNow         uint64 // 判定時点の権利確定済み総量
	TotalWithdrawn    uint64 // 更新後の累計払い出し量
	DestinationTokens string // 受益者の受取口座アドレス
	JournalID         string // ジャーナル行ID（no-opの場合は空）
}

// Claim は企業名と署名済み呼び出し元（受益者）からクレームを実行する。
//
// 企業・従業員レコードは企業名と受益者から決定論的に再導出され、
// 保存済みの参照と突き合わせて検証される。不一致は権限エラーとして
// 即座に中断する。クリフ到達前の請求は、請求可能額の計算に入る前に
// CLIFF_NOT_PASTで拒否される（クリフ時刻ちょうどの請求は成立する）。
// 払い出しはトレジャリー自身の導出アドレスを権限者とするシード
// ケイパビリティで承認され、残高減算・受取口座への加算・
// total_withdrawnの更新は全て成立するか全て破棄される。
func (s *Service) Claim(ctx context.Context, caller, companyName string) (*Result, error) {
	start := s.now()
	result, err := s.claim(ctx, caller, companyName)
	s.record(start, result, err)
	return result, err
}

func (s *Service) claim(ctx context.Context, caller, companyName string) (*Result, error) {
	company, err := s.companyRepo.FindByName(ctx, companyName)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, model.NewCompanyNotFoundError(companyName)
	}

	// 保存済みバンプで企業アドレスを再導出し、保存値と一致することを検証する
	derivedCompany, err := address.DeriveWithBump(model.RecordKindCompany, company.Bump, []byte(companyName))
	if err != nil || derivedCompany != company.Address {
		return nil, model.NewAccountMismatchError("company_address")
	}

	employeeAddr, _, err := address.ForEmployee(caller, company.Address)
	if err != nil {
		if errors.Is(err, address.ErrExhausted) {
			return nil, model.NewDerivationFailedError()
		}
		return nil, model.NewInvalidAddressError("beneficiary")
	}

	now := s.now().Unix()

	claimResult, err := s.ledgerRepo.ExecuteClaim(ctx, company.Address, employeeAddr,
		func(snap *repository.ClaimSnapshot) (*repository.ClaimDecision, error) {
			return s.decide(snap, caller, companyName, now)
		})
	if err != nil {
		return nil, err
	}

	destination, _, _ := address.ForTokenHolding(caller, company.Mint)
	return &Result{
		Claimable:         claimResult.Claimable,
		VestedNow:         claimResult.VestedNow,
		TotalWithdrawn:    claimResult.NewTotalWithdrawn,
		DestinationTokens: destination,
		JournalID:         claimResult.JournalID,
	}, nil
}

// decide はロック済みスナップショットから払い出し判定を行う。
// エラーを返すとトランザクション全体がロールバックされる。
func (s *Service) decide(snap *repository.ClaimSnapshot, caller, companyName string, now int64) (*repository.ClaimDecision, error) {
	if snap.Company == nil {
		return nil, model.NewCompanyNotFoundError(companyName)
	}
	if snap.Employee == nil {
		return nil, model.NewEmployeeNotFoundError()
	}

	// リレーション検証。導出アドレスが一致していても、保存済みの
	// 参照フィールドとの不一致は権限検証の失敗として扱う
	if snap.Employee.Beneficiary != caller {
		return nil, model.NewUnauthorizedError("クレームできるのはレコードに保存された受益者のみです")
	}
	if snap.Employee.CompanyAddress != snap.Company.Address {
		return nil, model.NewAccountMismatchError("company_address")
	}
	derivedTreasury, err := address.DeriveWithBump(model.RecordKindTreasury, snap.Company.TreasuryBump, []byte(companyName))
	if err != nil || derivedTreasury != snap.Company.TreasuryAccount {
		return nil, model.NewAccountMismatchError("treasury_account")
	}
	if snap.Treasury == nil {
		return nil, model.NewAccountNotFoundError(snap.Company.TreasuryAccount)
	}
	if snap.Treasury.Mint != snap.Company.Mint {
		return nil, model.NewAccountMismatchError("mint")
	}

	// クリフ判定は請求可能額の計算より前に行う独立したゲート。
	// クリフ時刻ちょうどの請求は成立する
	if now < snap.Employee.CliffTime {
		return nil, model.NewCliffNotPastError(snap.Employee.CliffTime)
	}

	schedule := vesting.Schedule{
		StartTime:   snap.Employee.StartTime,
		CliffTime:   snap.Employee.CliffTime,
		EndTime:     snap.Employee.EndTime,
		TotalAmount: snap.Employee.TotalAmount,
	}
	vested, err := schedule.VestedAt(now)
	if err != nil {
		return nil, err
	}
	claimable, err := schedule.ClaimableAt(now, snap.Employee.TotalWithdrawn)
	if err != nil {
		return nil, err
	}

	decision := &repository.ClaimDecision{
		Claimable: claimable,
		VestedNow: vested,
	}

	// 請求可能額ゼロは無害なno-op。同一時刻の再請求は二重払いにならない
	if claimable == 0 {
		return decision, nil
	}

	// トレジャリーが請求可能額をカバーできない場合は資金不足。
	// 状態を変更せずに中断する
	if snap.Treasury.Balance < claimable {
		return nil, model.NewDepletedError()
	}

	destination, _, err := address.ForTokenHolding(caller, snap.Company.Mint)
	if err != nil {
		if errors.Is(err, address.ErrExhausted) {
			return nil, model.NewDerivationFailedError()
		}
		return nil, err
	}

	decision.DestinationAddress = destination
	// トレジャリーの支出ケイパビリティ。元のシードを提示することで
	// 権限を証明する。外部の鍵は一切関与しない
	decision.Authority = address.TreasuryAuthority(companyName, snap.Company.TreasuryBump)

	return decision, nil
}

// record はクレームの結果をメトリクスに記録する。
func (s *Service) record(start time.Time, result *Result, err error) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordClaimLatency(s.now().Sub(start))

	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			s.recorder.RecordClaimRejected(apiErr.Code)
		} else {
			s.recorder.RecordClaimRejected("INTERNAL")
		}
		return
	}
	if result.Claimable == 0 {
		s.recorder.RecordClaimNoop()
		return
	}
	s.recorder.RecordClaimSuccess(result.Claimable)
}

// History は従業員レコードのクレーム履歴を返す。
func (s *Service) History(ctx context.Context, companyName, beneficiary string, limit int) ([]*model.ClaimRecord, error) {
	company, err := s.companyRepo.FindByName(ctx, companyName)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, model.NewCompanyNotFoundError(companyName)
	}
	employeeAddr, _, err := address.ForEmployee(beneficiary, company.Address)
	if err != nil {
		return nil, model.NewInvalidAddressError("beneficiary")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.ledgerRepo.ListClaimsByEmployee(ctx, employeeAddr, limit)
}
