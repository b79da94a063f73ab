// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/vestry/internal/address"
	"github.com/hitoshi/vestry/internal/model"
)

// CompanyRepository は企業ベスティングレコードの永続化インターフェース。
type CompanyRepository interface {
	// CreateWithTreasury は企業レコードとトレジャリー口座を同一トランザクションで作成する。
	// 企業名が重複している場合はCOMPANY_EXISTSを返す。
	CreateWithTreasury(ctx context.Context, company *model.Company, treasury *model.TokenAccount) error

	// FindByName は企業名で企業レコードを取得する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, companyName string) (*model.Company, error)

	// FindByAddress は導出アドレスで企業レコードを取得する。見つからない場合はnilを返す。
	FindByAddress(ctx context.Context, addr string) (*model.Company, error)

	// ListAll は全企業レコードを返す。監査ワーカー用。
	ListAll(ctx context.Context) ([]*model.Company, error)
}

// EmployeeRepository は従業員ベスティングレコードの永続化インターフェース。
type EmployeeRepository interface {
	// Create は従業員レコードを作成する。
	// 同一(受益者, 企業)のレコードが既に存在する場合はEMPLOYEE_EXISTSを返す。
	Create(ctx context.Context, employee *model.Employee) error

	// FindByAddress は導出アドレスで従業員レコードを取得する。見つからない場合はnilを返す。
	FindByAddress(ctx context.Context, addr string) (*model.Employee, error)

	// ListByCompany は企業配下の全従業員レコードを返す。監査ワーカー用。
	ListByCompany(ctx context.Context, companyAddress string) ([]*model.Employee, error)
}

// ClaimSnapshot はクレームトランザクション内で観測した一貫性のある状態。
// EmployeeとTreasuryは行ロック済みで、コミットまで他のクレームからは変更されない。
type ClaimSnapshot struct {
	Company  *model.Company      // 見つからない場合はnil
	Employee *model.Employee     // 見つからない場合はnil
	Treasury *model.TokenAccount // 見つからない場合はnil
}

// ClaimDecision はクレームエンジンがスナップショットから導いた判定結果。
type ClaimDecision struct {
	Claimable          uint64             // 今回払い出す量。0の場合は何も書き込まない
	VestedNow          uint64             // 判定時点の権利確定済み総量
	Authority          *address.Authority // トレジャリーの支出ケイパビリティ
	DestinationAddress string             // 受益者の受取口座（導出アドレス）
}

// ClaimDecideFunc はロック済みスナップショットを受け取り、払い出し判定を返す。
// エラーを返すとトランザクション全体がロールバックされる。
type ClaimDecideFunc func(snap *ClaimSnapshot) (*ClaimDecision, error)

// ClaimResult はコミット済みクレームの結果。
type ClaimResult struct {
	Claimable         uint64 // 払い出された量（no-opの場合は0）
	VestedNow         uint64
	NewTotalWithdrawn uint64
	JournalID         string // no-opの場合は空
}

// LedgerRepository はトークンミント・口座・クレームの永続化インターフェース。
// 残高を動かす操作はすべて単一トランザクションで実行され、
// 部分的に適用された状態が他の操作から観測されることはない。
type LedgerRepository interface {
	// CreateMint はトークンミントを作成する。
	CreateMint(ctx context.Context, mint *model.TokenMint) error

	// FindMint は指定アドレスのミントを取得する。見つからない場合はnilを返す。
	FindMint(ctx context.Context, addr string) (*model.TokenMint, error)

	// FindAccount は指定アドレスのトークン口座を取得する。見つからない場合はnilを返す。
	FindAccount(ctx context.Context, addr string) (*model.TokenAccount, error)

	// CreateAccount はトークン口座を作成する。既に存在する場合は何もしない。
	CreateAccount(ctx context.Context, account *model.TokenAccount) error

	// MintTo はミント権限者の承認済みという前提で、口座に新規発行する。
	// 発行量はミントのsupplyにも加算される。
	MintTo(ctx context.Context, mintAddr, toAddr string, amount uint64) error

	// Transfer は口座間でトークンを移動する。権限検証は呼び出し側の責務。
	// 残高不足の場合はINSUFFICIENT_FUNDSを返し、状態を変更しない。
	Transfer(ctx context.Context, fromAddr, toAddr string, amount uint64) error

	// ExecuteClaim はクレームを単一の原子的トランザクションとして実行する。
	//
	// 企業・従業員・トレジャリーを読み取り（従業員とトレジャリーは行ロック）、
	// decideの判定に従って払い出す。Claimableが0の場合は何も書き込まず
	// 正常終了する。払い出す場合は、提示されたケイパビリティがトレジャリーの
	// 権限者に再導出されることを検証した上で、受取口座の作成（必要時）、
	// トレジャリーの減算、受取口座の加算、total_withdrawnの更新、
	// ジャーナル行の追加をすべてコミットするか、すべて破棄する。
	ExecuteClaim(ctx context.Context, companyAddr, employeeAddr string, decide ClaimDecideFunc) (*ClaimResult, error)

	// ListClaimsByEmployee は従業員レコードのクレーム履歴を新しい順に返す。
	ListClaimsByEmployee(ctx context.Context, employeeAddr string, limit int) ([]*model.ClaimRecord, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
