package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/vestry/internal/model"
)

// PostgresLedgerRepo はPostgreSQLを使用したトークン台帳リポジトリ。
// 残高を動かす操作はすべて単一トランザクション内で行ロックを取得して実行する。
type PostgresLedgerRepo struct {
	db *sql.DB
}

// NewPostgresLedgerRepo はPostgresLedgerRepoを生成する。
func NewPostgresLedgerRepo(db *sql.DB) *PostgresLedgerRepo {
	return &PostgresLedgerRepo{db: db}
}

// rowQuerier は*sql.DBと*sql.Txの両方が満たす単一行クエリのインターフェース。
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateMint はトークンミントを作成する。
func (r *PostgresLedgerRepo) CreateMint(ctx context.Context, mint *model.TokenMint) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO token_mints (address, authority, decimals, supply, created_at)
		 VALUES ($1, $2, $3, 0, $4)`,
		mint.Address, mint.Authority, int16(mint.Decimals), mint.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("mint already exists: %s", mint.Address)
		}
		return fmt.Errorf("failed to insert mint: %w", err)
	}
	return nil
}

// FindMint は指定アドレスのミントを取得する。見つからない場合はnilを返す。
func (r *PostgresLedgerRepo) FindMint(ctx context.Context, addr string) (*model.TokenMint, error) {
	mint := &model.TokenMint{}
	var decimals int16
	var supply int64
	err := r.db.QueryRowContext(ctx,
		`SELECT address, authority, decimals, supply, created_at FROM token_mints WHERE address = $1`,
		addr,
	).Scan(&mint.Address, &mint.Authority, &decimals, &supply, &mint.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find mint: %w", err)
	}
	mint.Decimals = uint8(decimals)
	mint.Supply = uint64(supply)
	return mint, nil
}

// FindAccount は指定アドレスのトークン口座を取得する。見つからない場合はnilを返す。
func (r *PostgresLedgerRepo) FindAccount(ctx context.Context, addr string) (*model.TokenAccount, error) {
	return findAccount(ctx, r.db, addr, false)
}

// CreateAccount はトークン口座を作成する。既に存在する場合は何もしない。
func (r *PostgresLedgerRepo) CreateAccount(ctx context.Context, account *model.TokenAccount) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO token_accounts (address, mint, authority, balance, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (address) DO NOTHING`,
		account.Address, account.Mint, account.Authority, int64(account.Balance), account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert token account: %w", err)
	}
	return nil
}

// MintTo はミント権限者の承認済みという前提で、口座に新規発行する。
// 発行量はミントのsupplyにも加算される。
func (r *PostgresLedgerRepo) MintTo(ctx context.Context, mintAddr, toAddr string, amount uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE token_mints SET supply = supply + $1 WHERE address = $2`,
		int64(amount), mintAddr,
	)
	if err != nil {
		return fmt.Errorf("failed to update mint supply: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return model.NewMintNotFoundError(mintAddr)
	}

	result, err = tx.ExecContext(ctx,
		`UPDATE token_accounts SET balance = balance + $1, updated_at = $2 WHERE address = $3 AND mint = $4`,
		int64(amount), time.Now().UTC(), toAddr, mintAddr,
	)
	if err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return model.NewAccountNotFoundError(toAddr)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Transfer は口座間でトークンを移動する。権限検証は呼び出し側の責務。
// 残高不足の場合はINSUFFICIENT_FUNDSを返し、状態を変更しない。
// デッドロック回避のため、アドレス昇順で行ロックを取得する。
func (r *PostgresLedgerRepo) Transfer(ctx context.Context, fromAddr, toAddr string, amount uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	first, second := fromAddr, toAddr
	if second < first {
		first, second = second, first
	}
	for _, addr := range []string{first, second} {
		if _, err := findAccountTx(ctx, tx, addr); err != nil {
			return err
		}
	}

	if err := moveBalance(ctx, tx, fromAddr, toAddr, amount); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ExecuteClaim はクレームを単一の原子的トランザクションとして実行する。
// 従業員とトレジャリーの行ロックにより、同一レコードへの並行クレームは
// 直列化され、後続のクレームは必ず更新済みのtotal_withdrawnを観測する。
func (r *PostgresLedgerRepo) ExecuteClaim(ctx context.Context, companyAddr, employeeAddr string, decide ClaimDecideFunc) (*ClaimResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	snap := &ClaimSnapshot{}

	// 企業レコードは作成後イミュータブルのためロック不要
	snap.Company, err = findCompanyTx(ctx, tx, companyAddr)
	if err != nil {
		return nil, err
	}

	// 従業員レコードを行ロック付きで取得
	snap.Employee, err = findEmployeeForUpdate(ctx, tx, employeeAddr)
	if err != nil {
		return nil, err
	}

	// トレジャリー口座を行ロック付きで取得
	if snap.Company != nil {
		snap.Treasury, err = findAccount(ctx, tx, snap.Company.TreasuryAccount, true)
		if err != nil {
			return nil, err
		}
	}

	decision, err := decide(snap)
	if err != nil {
		return nil, err
	}

	result := &ClaimResult{
		Claimable: decision.Claimable,
		VestedNow: decision.VestedNow,
	}

	// 請求可能額ゼロは無害なno-op。何も書き込まずに終了する
	if decision.Claimable == 0 {
		result.NewTotalWithdrawn = snap.Employee.TotalWithdrawn
		return result, nil
	}

	// トレジャリーの支出権限を検証する。提示されたシードケイパビリティが
	// 支出元口座の権限者アドレスに再導出されなければならない
	if decision.Authority == nil {
		return nil, model.NewUnauthorizedError("トレジャリーの支出ケイパビリティが提示されていません")
	}
	authorityAddr, err := decision.Authority.Address()
	if err != nil {
		return nil, fmt.Errorf("failed to re-derive treasury authority: %w", err)
	}
	if authorityAddr != snap.Treasury.Authority {
		return nil, model.NewUnauthorizedError("支出ケイパビリティがトレジャリーの権限者と一致しません")
	}

	now := time.Now().UTC()

	// 受取口座がなければ作成する（権限者は受益者本人）
	_, err = tx.ExecContext(ctx,
		`INSERT INTO token_accounts (address, mint, authority, balance, created_at, updated_at)
		 VALUES ($1, $2, $3, 0, $4, $4)
		 ON CONFLICT (address) DO NOTHING`,
		decision.DestinationAddress, snap.Treasury.Mint, snap.Employee.Beneficiary, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure destination account: %w", err)
	}

	if err := moveBalance(ctx, tx, snap.Treasury.Address, decision.DestinationAddress, decision.Claimable); err != nil {
		return nil, err
	}

	// 累計払い出し量を更新
	newWithdrawn := snap.Employee.TotalWithdrawn + decision.Claimable
	_, err = tx.ExecContext(ctx,
		`UPDATE employees SET total_withdrawn = $1, updated_at = $2 WHERE address = $3`,
		int64(newWithdrawn), now, employeeAddr,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update total_withdrawn: %w", err)
	}

	// ジャーナル行を追加
	journalID := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO claim_journal (id, employee_address, amount, vested_at_claim, claimed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		journalID, employeeAddr, int64(decision.Claimable), int64(decision.VestedNow), now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert claim journal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	result.NewTotalWithdrawn = newWithdrawn
	result.JournalID = journalID
	return result, nil
}

// ListClaimsByEmployee は従業員レコードのクレーム履歴を新しい順に返す。
func (r *PostgresLedgerRepo) ListClaimsByEmployee(ctx context.Context, employeeAddr string, limit int) ([]*model.ClaimRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, employee_address, amount, vested_at_claim, claimed_at
		 FROM claim_journal WHERE employee_address = $1 ORDER BY claimed_at DESC LIMIT $2`,
		employeeAddr, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	var records []*model.ClaimRecord
	for rows.Next() {
		rec := &model.ClaimRecord{}
		var amount, vested int64
		if err := rows.Scan(&rec.ID, &rec.EmployeeAddress, &amount, &vested, &rec.ClaimedAt); err != nil {
			return nil, fmt.Errorf("failed to scan claim record: %w", err)
		}
		rec.Amount = uint64(amount)
		rec.VestedAtClaim = uint64(vested)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate claims: %w", err)
	}

	return records, nil
}

// moveBalance は同一トランザクション内で残高を移動する。
// 減算は残高が足りる場合のみ成立し、足りない場合はINSUFFICIENT_FUNDSを返す。
func moveBalance(ctx context.Context, tx *sql.Tx, fromAddr, toAddr string, amount uint64) error {
	now := time.Now().UTC()

	result, err := tx.ExecContext(ctx,
		`UPDATE token_accounts SET balance = balance - $1, updated_at = $2
		 WHERE address = $3 AND balance >= $1`,
		int64(amount), now, fromAddr,
	)
	if err != nil {
		return fmt.Errorf("failed to debit account: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return model.NewInsufficientFundsError()
	}

	result, err = tx.ExecContext(ctx,
		`UPDATE token_accounts SET balance = balance + $1, updated_at = $2 WHERE address = $3`,
		int64(amount), now, toAddr,
	)
	if err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return model.NewAccountNotFoundError(toAddr)
	}

	return nil
}

// findAccount はトークン口座を取得する。forUpdateがtrueの場合は行ロックを取得する。
func findAccount(ctx context.Context, q rowQuerier, addr string, forUpdate bool) (*model.TokenAccount, error) {
	query := `SELECT address, mint, authority, balance, created_at, updated_at
	          FROM token_accounts WHERE address = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	account := &model.TokenAccount{}
	var balance int64
	err := q.QueryRowContext(ctx, query, addr).Scan(
		&account.Address, &account.Mint, &account.Authority, &balance,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find token account: %w", err)
	}
	account.Balance = uint64(balance)
	return account, nil
}

// findAccountTx は行ロック付きで口座を取得し、存在しない場合はエラーを返す。
func findAccountTx(ctx context.Context, tx *sql.Tx, addr string) (*model.TokenAccount, error) {
	account, err := findAccount(ctx, tx, addr, true)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, model.NewAccountNotFoundError(addr)
	}
	return account, nil
}

// findCompanyTx はトランザクション内で企業レコードを取得する。見つからない場合はnilを返す。
func findCompanyTx(ctx context.Context, tx *sql.Tx, addr string) (*model.Company, error) {
	company := &model.Company{}
	var bump, treasuryBump int16
	err := tx.QueryRowContext(ctx,
		`SELECT address, owner, mint, treasury_account, company_name, bump, treasury_bump, created_at
		 FROM companies WHERE address = $1`,
		addr,
	).Scan(
		&company.Address, &company.Owner, &company.Mint, &company.TreasuryAccount,
		&company.CompanyName, &bump, &treasuryBump, &company.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find company: %w", err)
	}
	company.Bump = uint8(bump)
	company.TreasuryBump = uint8(treasuryBump)
	return company, nil
}

// findEmployeeForUpdate は行ロック付きで従業員レコードを取得する。見つからない場合はnilを返す。
func findEmployeeForUpdate(ctx context.Context, tx *sql.Tx, addr string) (*model.Employee, error) {
	employee := &model.Employee{}
	var totalAmount, totalWithdrawn int64
	var bump int16
	err := tx.QueryRowContext(ctx,
		`SELECT address, beneficiary, company_address, start_time, cliff_time, end_time,
		        total_amount, total_withdrawn, bump, created_at, updated_at
		 FROM employees WHERE address = $1 FOR UPDATE`,
		addr,
	).Scan(
		&employee.Address, &employee.Beneficiary, &employee.CompanyAddress,
		&employee.StartTime, &employee.CliffTime, &employee.EndTime,
		&totalAmount, &totalWithdrawn, &bump, &employee.CreatedAt, &employee.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find employee: %w", err)
	}
	employee.TotalAmount = uint64(totalAmount)
	employee.TotalWithdrawn = uint64(totalWithdrawn)
	employee.Bump = uint8(bump)
	return employee, nil
}

// compile-time interface check
var _ LedgerRepository = (*PostgresLedgerRepo)(nil)
