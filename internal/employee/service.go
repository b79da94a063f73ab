// Package employee は従業員ベスティングレジストリのドメインロジックを提供する。
package employee

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hitoshi/vestry/internal/address"
	"github.com/hitoshi/vestry/internal/metrics"
	"github.com/hitoshi/vestry/internal/model"
	"github.com/hitoshi/vestry/internal/repository"
	"github.com/hitoshi/vestry/internal/vesting"
)

// Service は従業員レコード管理のサービス層。
type Service struct {
	companyRepo  repository.CompanyRepository
	employeeRepo repository.EmployeeRepository
	recorder     metrics.Recorder
	now          func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// recorderはnilでもよい。
func NewService(companyRepo repository.CompanyRepository, employeeRepo repository.EmployeeRepository, recorder metrics.Recorder) *Service {
	return &Service{
		companyRepo:  companyRepo,
		employeeRepo: employeeRepo,
		recorder:     recorder,
		now:          time.Now,
	}
}

// CreateEmployee は従業員ベスティングレコードを作成する。
//
// 呼び出し元は保存済みの企業レコードのownerと一致しなければならない。
// 検証はリクエストで再提供された値ではなく、保存済みのリレーションに
// 対して行う。レコードアドレスは(受益者, 企業レコード)から決定論的に
// 導出され、total_withdrawnは0で初期化される。この操作はトークンを
// 一切移動しない。トレジャリーへの入金は独立した通常の送金で行う。
func (s *Service) CreateEmployee(ctx context.Context, caller, companyName, beneficiary string, schedule vesting.Schedule) (*model.Employee, error) {
	company, err := s.companyRepo.FindByName(ctx, companyName)
	if err != nil {
		return nil, fmt.Errorf("企業レコードの取得に失敗しました: %w", err)
	}
	if company == nil {
		return nil, model.NewCompanyNotFoundError(companyName)
	}

	// 従業員登録は企業レコードに保存されたownerのみが行える
	if company.Owner != caller {
		return nil, model.NewUnauthorizedError("従業員を登録できるのは企業レコードのownerのみです")
	}

	if !address.IsValid(beneficiary) {
		return nil, model.NewInvalidAddressError("beneficiary")
	}
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	// 台帳の数値表現の上限を超える量は受け付けない
	if schedule.TotalAmount > math.MaxInt64 {
		return nil, model.NewInvalidAmountError()
	}

	employeeAddr, bump, err := address.ForEmployee(beneficiary, company.Address)
	if err != nil {
		if errors.Is(err, address.ErrExhausted) {
			return nil, model.NewDerivationFailedError()
		}
		return nil, err
	}

	now := s.now().UTC()
	employee := &model.Employee{
		Address:        employeeAddr,
		Beneficiary:    beneficiary,
		CompanyAddress: company.Address,
		StartTime:      schedule.StartTime,
		CliffTime:      schedule.CliffTime,
		EndTime:        schedule.EndTime,
		TotalAmount:    schedule.TotalAmount,
		TotalWithdrawn: 0,
		Bump:           bump,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.employeeRepo.Create(ctx, employee); err != nil {
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.RecordEmployeeCreated()
	}

	return employee, nil
}

// EmployeeInfo は従業員レコードと現在時刻でのベスティング状況を結合したドメインオブジェクト。
type EmployeeInfo struct {
	Employee  *model.Employee
	State     model.VestingState
	VestedNow uint64 // 現在時刻の権利確定済み総量
	Claimable uint64 // 現在時刻に請求すると払い出される量
}

// GetEmployee は従業員レコードを現在のベスティング状況付きで返す。
// 読み取り専用のプレビューであり、状態は一切変更しない。
func (s *Service) GetEmployee(ctx context.Context, companyName, beneficiary string) (*EmployeeInfo, error) {
	company, err := s.companyRepo.FindByName(ctx, companyName)
	if err != nil {
		return nil, fmt.Errorf("企業レコードの取得に失敗しました: %w", err)
	}
	if company == nil {
		return nil, model.NewCompanyNotFoundError(companyName)
	}

	employeeAddr, _, err := address.ForEmployee(beneficiary, company.Address)
	if err != nil {
		return nil, model.NewInvalidAddressError("beneficiary")
	}

	employee, err := s.employeeRepo.FindByAddress(ctx, employeeAddr)
	if err != nil {
		return nil, fmt.Errorf("従業員レコードの取得に失敗しました: %w", err)
	}
	if employee == nil {
		return nil, model.NewEmployeeNotFoundError()
	}

	now := s.now().Unix()
	schedule := vesting.Schedule{
		StartTime:   employee.StartTime,
		CliffTime:   employee.CliffTime,
		EndTime:     employee.EndTime,
		TotalAmount: employee.TotalAmount,
	}

	info := &EmployeeInfo{
		Employee: employee,
		State:    employee.StateAt(now),
	}

	// プレビューの計算エラーはレコード自体の取得を妨げない
	if vested, err := schedule.VestedAt(now); err == nil {
		info.VestedNow = vested
		if vested > employee.TotalWithdrawn {
			info.Claimable = vested - employee.TotalWithdrawn
		}
	}

	return info, nil
}
