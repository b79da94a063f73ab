package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/vestry/internal/model"
)

// PostgresEmployeeRepo はPostgreSQLを使用した従業員レコードリポジトリ。
type PostgresEmployeeRepo struct {
	db *sql.DB
}

// NewPostgresEmployeeRepo はPostgresEmployeeRepoを生成する。
func NewPostgresEmployeeRepo(db *sql.DB) *PostgresEmployeeRepo {
	return &PostgresEmployeeRepo{db: db}
}

// Create は従業員レコードを作成する。
// 同一(受益者, 企業)のレコードが既に存在する場合はEMPLOYEE_EXISTSを返す。
func (r *PostgresEmployeeRepo) Create(ctx context.Context, employee *model.Employee) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO employees
		 (address, beneficiary, company_address, start_time, cliff_time, end_time,
		  total_amount, total_withdrawn, bump, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, $9)`,
		employee.Address, employee.Beneficiary, employee.CompanyAddress,
		employee.StartTime, employee.CliffTime, employee.EndTime,
		int64(employee.TotalAmount), int16(employee.Bump), employee.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return model.NewEmployeeExistsError()
		}
		return fmt.Errorf("failed to insert employee: %w", err)
	}
	return nil
}

// FindByAddress は導出アドレスで従業員レコードを取得する。見つからない場合はnilを返す。
func (r *PostgresEmployeeRepo) FindByAddress(ctx context.Context, addr string) (*model.Employee, error) {
	employee := &model.Employee{}
	var totalAmount, totalWithdrawn int64
	var bump int16
	err := r.db.QueryRowContext(ctx,
		`SELECT address, beneficiary, company_address, start_time, cliff_time, end_time,
		        total_amount, total_withdrawn, bump, created_at, updated_at
		 FROM employees WHERE address = $1`,
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

// ListByCompany は企業配下の全従業員レコードを返す。監査ワーカー用。
func (r *PostgresEmployeeRepo) ListByCompany(ctx context.Context, companyAddress string) ([]*model.Employee, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT address, beneficiary, company_address, start_time, cliff_time, end_time,
		        total_amount, total_withdrawn, bump, created_at, updated_at
		 FROM employees WHERE company_address = $1 ORDER BY created_at`,
		companyAddress,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []*model.Employee
	for rows.Next() {
		employee := &model.Employee{}
		var totalAmount, totalWithdrawn int64
		var bump int16
		err := rows.Scan(
			&employee.Address, &employee.Beneficiary, &employee.CompanyAddress,
			&employee.StartTime, &employee.CliffTime, &employee.EndTime,
			&totalAmount, &totalWithdrawn, &bump, &employee.CreatedAt, &employee.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employee.TotalAmount = uint64(totalAmount)
		employee.TotalWithdrawn = uint64(totalWithdrawn)
		employee.Bump = uint8(bump)
		employees = append(employees, employee)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employees: %w", err)
	}

	return employees, nil
}

// compile-time interface check
var _ EmployeeRepository = (*PostgresEmployeeRepo)(nil)
