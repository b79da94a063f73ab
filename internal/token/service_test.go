package token

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/hitoshi/vestry/internal/address"
	"github.com/hitoshi/vestry/internal/model"
	"github.com/hitoshi/vestry/internal/repository"
)

// --- モック ---

type mockLedgerRepo struct {
	createMintFn    func(ctx context.Context, mint *model.TokenMint) error
	findMintFn      func(ctx context.Context, addr string) (*model.TokenMint, error)
	findAccountFn   func(ctx context.Context, addr string) (*model.TokenAccount, error)
	createAccountFn func(ctx context.Context, account *model.TokenAccount) error
	mintToFn        func(ctx context.Context, mintAddr, toAddr string, amount uint64) error
	transferFn      func(ctx context.Context, fromAddr, toAddr string, amount uint64) error
}

func (m *mockLedgerRepo) CreateMint(ctx context.Context, mint *model.TokenMint) error {
	if m.createMintFn != nil {
		return m.createMintFn(ctx, mint)
	}
	return nil
}

func (m *mockLedgerRepo) FindMint(ctx context.Context, addr string) (*model.TokenMint, error) {
	if m.findMintFn != nil {
		return m.findMintFn(ctx, addr)
	}
	return nil, nil
}

func (m *mockLedgerRepo) FindAccount(ctx context.Context, addr string) (*model.TokenAccount, error) {
	if m.findAccountFn != nil {
		return m.findAccountFn(ctx, addr)
	}
	return nil, nil
}

func (m *mockLedgerRepo) CreateAccount(ctx context.Context, account *model.TokenAccount) error {
	if m.createAccountFn != nil {
		return m.createAccountFn(ctx, account)
	}
	return nil
}

func (m *mockLedgerRepo) MintTo(ctx context.Context, mintAddr, toAddr string, amount uint64) error {
	if m.mintToFn != nil {
		return m.mintToFn(ctx, mintAddr, toAddr, amount)
	}
	return nil
}

func (m *mockLedgerRepo) Transfer(ctx context.Context, fromAddr, toAddr string, amount uint64) error {
	if m.transferFn != nil {
		return m.transferFn(ctx, fromAddr, toAddr, amount)
	}
	return nil
}

func (m *mockLedgerRepo) ExecuteClaim(ctx context.Context, companyAddr, employeeAddr string, decide repository.ClaimDecideFunc) (*repository.ClaimResult, error) {
	return nil, nil
}

func (m *mockLedgerRepo) ListClaimsByEmployee(ctx context.Context, employeeAddr string, limit int) ([]*model.ClaimRecord, error) {
	return nil, nil
}

// --- テスト ---

var (
	testCaller = strings.Repeat("ab", 32)
	testOwner  = strings.Repeat("cd", 32)
	testMint   = strings.Repeat("ef", 32)
)

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != code {
		t.Errorf("error code = %q, want %q", apiErr.Code, code)
	}
}

func TestCreateMint_CallerBecomesAuthority(t *testing.T) {
	var persisted *model.TokenMint
	ledgerRepo := &mockLedgerRepo{
		createMintFn: func(ctx context.Context, mint *model.TokenMint) error {
			persisted = mint
			return nil
		},
	}
	svc := NewService(ledgerRepo)

	mint, err := svc.CreateMint(context.Background(), testCaller, 9)
	if err != nil {
		t.Fatalf("CreateMint returned error: %v", err)
	}

	if mint.Authority != testCaller {
		t.Errorf("Authority = %q, want caller %q", mint.Authority, testCaller)
	}
	if mint.Decimals != 9 {
		t.Errorf("Decimals = %d, want 9", mint.Decimals)
	}
	if mint.Supply != 0 {
		t.Errorf("Supply = %d, want 0", mint.Supply)
	}
	if !address.IsValid(mint.Address) {
		t.Errorf("mint address %q should be a valid derived address", mint.Address)
	}
	if persisted != mint {
		t.Error("expected the mint to be persisted")
	}
}

func TestCreateMint_NonceMakesAddressesUnique(t *testing.T) {
	svc := NewService(&mockLedgerRepo{})

	first, err := svc.CreateMint(context.Background(), testCaller, 9)
	if err != nil {
		t.Fatalf("CreateMint returned error: %v", err)
	}
	second, err := svc.CreateMint(context.Background(), testCaller, 9)
	if err != nil {
		t.Fatalf("CreateMint returned error: %v", err)
	}

	if first.Address == second.Address {
		t.Error("two mints from the same caller should not share an address")
	}
}

func TestCreateMint_InvalidCaller(t *testing.T) {
	svc := NewService(&mockLedgerRepo{})

	_, err := svc.CreateMint(context.Background(), "not-an-address", 9)
	assertErrorCode(t, err, model.ErrCodeInvalidAddress)
}

func TestMintTo_CreatesHoldingAndIssues(t *testing.T) {
	holdingAddr, _, err := address.ForTokenHolding(testOwner, testMint)
	if err != nil {
		t.Fatalf("ForTokenHolding returned error: %v", err)
	}

	var createdAccount *model.TokenAccount
	var mintedTo string
	var mintedAmount uint64
	ledgerRepo := &mockLedgerRepo{
		findMintFn: func(ctx context.Context, addr string) (*model.TokenMint, error) {
			return &model.TokenMint{Address: testMint, Authority: testCaller, Decimals: 9}, nil
		},
		createAccountFn: func(ctx context.Context, account *model.TokenAccount) error {
			createdAccount = account
			return nil
		},
		mintToFn: func(ctx context.Context, mintAddr, toAddr string, amount uint64) error {
			mintedTo = toAddr
			mintedAmount = amount
			return nil
		},
		findAccountFn: func(ctx context.Context, addr string) (*model.TokenAccount, error) {
			if addr == holdingAddr {
				return &model.TokenAccount{Address: holdingAddr, Mint: testMint, Authority: testOwner, Balance: 500}, nil
			}
			return nil, nil
		},
	}
	svc := NewService(ledgerRepo)

	account, err := svc.MintTo(context.Background(), testCaller, testMint, testOwner, 500)
	if err != nil {
		t.Fatalf("MintTo returned error: %v", err)
	}

	if createdAccount == nil {
		t.Fatal("expected the holding account to be created")
	}
	if createdAccount.Address != holdingAddr {
		t.Errorf("holding address = %q, want derived %q", createdAccount.Address, holdingAddr)
	}
	// 受取口座の権限者は所有者本人
	if createdAccount.Authority != testOwner {
		t.Errorf("holding authority = %q, want owner %q", createdAccount.Authority, testOwner)
	}
	if mintedTo != holdingAddr || mintedAmount != 500 {
		t.Errorf("minted %d to %q, want 500 to %q", mintedAmount, mintedTo, holdingAddr)
	}
	if account.Balance != 500 {
		t.Errorf("returned balance = %d, want 500", account.Balance)
	}
}

func TestMintTo_NonAuthorityRejected(t *testing.T) {
	ledgerRepo := &mockLedgerRepo{
		findMintFn: func(ctx context.Context, addr string) (*model.TokenMint, error) {
			return &model.TokenMint{Address: testMint, Authority: testCaller}, nil
		},
	}
	svc := NewService(ledgerRepo)

	_, err := svc.MintTo(context.Background(), testOwner, testMint, testOwner, 500)
	assertErrorCode(t, err, model.ErrCodeUnauthorized)
}

func TestMintTo_MintNotFound(t *testing.T) {
	svc := NewService(&mockLedgerRepo{})

	_, err := svc.MintTo(context.Background(), testCaller, testMint, testOwner, 500)
	assertErrorCode(t, err, model.ErrCodeMintNotFound)
}

func TestMintTo_AmountValidation(t *testing.T) {
	tests := []struct {
		name   string
		amount uint64
	}{
		{"ゼロ", 0},
		{"台帳表現の上限超過", math.MaxInt64 + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&mockLedgerRepo{})
			_, err := svc.MintTo(context.Background(), testCaller, testMint, testOwner, tt.amount)
			assertErrorCode(t, err, model.ErrCodeInvalidAmount)
		})
	}
}

func TestTransfer_AuthorityMovesFunds(t *testing.T) {
	fromAddr := strings.Repeat("12", 32)
	toAddr := strings.Repeat("34", 32)

	var transferred bool
	ledgerRepo := &mockLedgerRepo{
		findAccountFn: func(ctx context.Context, addr string) (*model.TokenAccount, error) {
			switch addr {
			case fromAddr:
				return &model.TokenAccount{Address: fromAddr, Mint: testMint, Authority: testCaller, Balance: 1000}, nil
			case toAddr:
				return &model.TokenAccount{Address: toAddr, Mint: testMint, Authority: testOwner, Balance: 0}, nil
			}
			return nil, nil
		},
		transferFn: func(ctx context.Context, from, to string, amount uint64) error {
			if from != fromAddr || to != toAddr || amount != 300 {
				t.Errorf("Transfer(%q, %q, %d), want (%q, %q, 300)", from, to, amount, fromAddr, toAddr)
			}
			transferred = true
			return nil
		},
	}
	svc := NewService(ledgerRepo)

	if err := svc.Transfer(context.Background(), testCaller, fromAddr, toAddr, 300); err != nil {
		t.Fatalf("Transfer returned error: %v", err)
	}
	if !transferred {
		t.Error("expected the ledger transfer to be executed")
	}
}

func TestTransfer_NonAuthorityRejected(t *testing.T) {
	fromAddr := strings.Repeat("12", 32)
	ledgerRepo := &mockLedgerRepo{
		findAccountFn: func(ctx context.Context, addr string) (*model.TokenAccount, error) {
			return &model.TokenAccount{Address: fromAddr, Mint: testMint, Authority: testCaller}, nil
		},
	}
	svc := NewService(ledgerRepo)

	err := svc.Transfer(context.Background(), testOwner, fromAddr, strings.Repeat("34", 32), 300)
	assertErrorCode(t, err, model.ErrCodeUnauthorized)
}

func TestTransfer_DerivedAuthorityAccountCannotBeMoved(t *testing.T) {
	// トレジャリーのように導出アドレスを権限者とする口座は、
	// どの署名者からも通常送金では動かせない
	treasuryAddr, _, err := address.ForTreasury("acme")
	if err != nil {
		t.Fatalf("ForTreasury returned error: %v", err)
	}
	ledgerRepo := &mockLedgerRepo{
		findAccountFn: func(ctx context.Context, addr string) (*model.TokenAccount, error) {
			return &model.TokenAccount{Address: treasuryAddr, Mint: testMint, Authority: treasuryAddr, Balance: 1000}, nil
		},
	}
	svc := NewService(ledgerRepo)

	err = svc.Transfer(context.Background(), testCaller, treasuryAddr, strings.Repeat("34", 32), 300)
	assertErrorCode(t, err, model.ErrCodeUnauthorized)
}

func TestTransfer_MintMismatch(t *testing.T) {
	fromAddr := strings.Repeat("12", 32)
	toAddr := strings.Repeat("34", 32)
	otherMint := strings.Repeat("56", 32)

	ledgerRepo := &mockLedgerRepo{
		findAccountFn: func(ctx context.Context, addr string) (*model.TokenAccount, error) {
			switch addr {
			case fromAddr:
				return &model.TokenAccount{Address: fromAddr, Mint: testMint, Authority: testCaller, Balance: 1000}, nil
			case toAddr:
				return &model.TokenAccount{Address: toAddr, Mint: otherMint, Authority: testOwner}, nil
			}
			return nil, nil
		},
	}
	svc := NewService(ledgerRepo)

	err := svc.Transfer(context.Background(), testCaller, fromAddr, toAddr, 300)
	assertErrorCode(t, err, model.ErrCodeAccountMismatch)
}

func TestTransfer_SourceNotFound(t *testing.T) {
	svc := NewService(&mockLedgerRepo{})

	err := svc.Transfer(context.Background(), testCaller, strings.Repeat("12", 32), strings.Repeat("34", 32), 300)
	assertErrorCode(t, err, model.ErrCodeAccountNotFound)
}

func TestTransfer_DestinationNotFound(t *testing.T) {
	fromAddr := strings.Repeat("12", 32)
	ledgerRepo := &mockLedgerRepo{
		findAccountFn: func(ctx context.Context, addr string) (*model.TokenAccount, error) {
			if addr == fromAddr {
				return &model.TokenAccount{Address: fromAddr, Mint: testMint, Authority: testCaller, Balance: 1000}, nil
			}
			return nil, nil
		},
	}
	svc := NewService(ledgerRepo)

	err := svc.Transfer(context.Background(), testCaller, fromAddr, strings.Repeat("34", 32), 300)
	assertErrorCode(t, err, model.ErrCodeAccountNotFound)
}

func TestGetAccount_NotFound(t *testing.T) {
	svc := NewService(&mockLedgerRepo{})

	_, err := svc.GetAccount(context.Background(), strings.Repeat("12", 32))
	assertErrorCode(t, err, model.ErrCodeAccountNotFound)
}
