package address

import "github.com/hitoshi/vestry/internal/model"

// ForCompany は企業レコードのアドレスを企業名から導出する。
func ForCompany(companyName string) (string, uint8, error) {
	return Derive(model.RecordKindCompany, []byte(companyName))
}

// ForTreasury はトレジャリー口座のアドレスを企業名から導出する。
// 種別タグが異なるため、企業レコードとは必ず別のアドレスになる。
func ForTreasury(companyName string) (string, uint8, error) {
	return Derive(model.RecordKindTreasury, []byte(companyName))
}

// ForEmployee は従業員レコードのアドレスを(受益者, 企業レコード)から導出する。
func ForEmployee(beneficiary, companyAddress string) (string, uint8, error) {
	b, err := Parse(beneficiary)
	if err != nil {
		return "", 0, err
	}
	c, err := Parse(companyAddress)
	if err != nil {
		return "", 0, err
	}
	return Derive(model.RecordKindEmployee, b, c)
}

// ForTokenHolding は受取口座のアドレスを(所有者, ミント)から導出する。
func ForTokenHolding(owner, mint string) (string, uint8, error) {
	o, err := Parse(owner)
	if err != nil {
		return "", 0, err
	}
	m, err := Parse(mint)
	if err != nil {
		return "", 0, err
	}
	return Derive(model.RecordKindTokenHolding, o, m)
}

// TreasuryAuthority はトレジャリー口座の支出権限ケイパビリティを構築する。
// クレームエンジンだけが呼び出すことを想定している。
func TreasuryAuthority(companyName string, bump uint8) *Authority {
	return NewAuthority(model.RecordKindTreasury, bump, []byte(companyName))
}
