package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/vestry/internal/model"
)

// PostgresCompanyRepo はPostgreSQLを使用した企業レコードリポジトリ。
type PostgresCompanyRepo struct {
	db *sql.DB
}

// NewPostgresCompanyRepo はPostgresCompanyRepoを生成する。
func NewPostgresCompanyRepo(db *sql.DB) *PostgresCompanyRepo {
	return &PostgresCompanyRepo{db: db}
}

// CreateWithTreasury は企業レコードとトレジャリー口座を同一トランザクションで作成する。
// 企業名が重複している場合はCOMPANY_EXISTSを返す。
func (r *PostgresCompanyRepo) CreateWithTreasury(ctx context.Context, company *model.Company, treasury *model.TokenAccount) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 企業レコードを作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO companies (address, owner, mint, treasury_account, company_name, bump, treasury_bump, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		company.Address, company.Owner, company.Mint, company.TreasuryAccount,
		company.CompanyName, int16(company.Bump), int16(company.TreasuryBump), company.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return model.NewCompanyExistsError(company.CompanyName)
		}
		return fmt.Errorf("failed to insert company: %w", err)
	}

	// トレジャリー口座を作成（残高0、権限者は自身の導出アドレス）
	_, err = tx.ExecContext(ctx,
		`INSERT INTO token_accounts (address, mint, authority, balance, created_at, updated_at)
		 VALUES ($1, $2, $3, 0, $4, $4)`,
		treasury.Address, treasury.Mint, treasury.Authority, treasury.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert treasury account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindByName は企業名で企業レコードを取得する。見つからない場合はnilを返す。
func (r *PostgresCompanyRepo) FindByName(ctx context.Context, companyName string) (*model.Company, error) {
	return r.findOne(ctx,
		`SELECT address, owner, mint, treasury_account, company_name, bump, treasury_bump, created_at
		 FROM companies WHERE company_name = $1`,
		companyName,
	)
}

// FindByAddress は導出アドレスで企業レコードを取得する。見つからない場合はnilを返す。
func (r *PostgresCompanyRepo) FindByAddress(ctx context.Context, addr string) (*model.Company, error) {
	return r.findOne(ctx,
		`SELECT address, owner, mint, treasury_account, company_name, bump, treasury_bump, created_at
		 FROM companies WHERE address = $1`,
		addr,
	)
}

// ListAll は全企業レコードを返す。監査ワーカー用。
func (r *PostgresCompanyRepo) ListAll(ctx context.Context) ([]*model.Company, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT address, owner, mint, treasury_account, company_name, bump, treasury_bump, created_at
		 FROM companies ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []*model.Company
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, company)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate companies: %w", err)
	}

	return companies, nil
}

// findOne は1件の企業レコードを取得する共通処理。
func (r *PostgresCompanyRepo) findOne(ctx context.Context, query string, arg any) (*model.Company, error) {
	company := &model.Company{}
	var bump, treasuryBump int16
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
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

// scanCompany はrows.Scanから企業レコードを組み立てる。
func scanCompany(rows *sql.Rows) (*model.Company, error) {
	company := &model.Company{}
	var bump, treasuryBump int16
	err := rows.Scan(
		&company.Address, &company.Owner, &company.Mint, &company.TreasuryAccount,
		&company.CompanyName, &bump, &treasuryBump, &company.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan company: %w", err)
	}
	company.Bump = uint8(bump)
	company.TreasuryBump = uint8(treasuryBump)
	return company, nil
}

// compile-time interface check
var _ CompanyRepository = (*PostgresCompanyRepo)(nil)
