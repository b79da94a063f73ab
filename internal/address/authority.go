package address

import "github.com/hitoshi/vestry/internal/model"

// Authority は導出アドレスに対する署名権限を表すケイパビリティ。
// 秘密鍵の代わりに、アドレスを導出した元のシード列とバンプ値を保持する。
// トークン層は提示されたシードからアドレスを再導出し、支出元口座の
// 権限者と一致することを検証する。構築できるのは元のシードを知る
// プログラムロジックのみで、外部にシリアライズされることはない。
type Authority struct {
	kind  model.RecordKind
	bump  uint8
	seeds [][]byte
}

// NewAuthority はシードケイパビリティを生成する。
func NewAuthority(kind model.RecordKind, bump uint8, seeds ...[]byte) *Authority {
	copied := make([][]byte, len(seeds))
	for i, seed := range seeds {
		s := make([]byte, len(seed))
		copy(s, seed)
		copied[i] = s
	}
	return &Authority{kind: kind, bump: bump, seeds: copied}
}

// Address は保持するシードからアドレスを再導出する。
// シードが改変されていた場合は元の権限者アドレスと一致しなくなる。
func (a *Authority) Address() (string, error) {
	return DeriveWithBump(a.kind, a.bump, a.seeds...)
}
