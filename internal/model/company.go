// Package model はドメインモデルを定義する。
package model

import "time"

// RecordKind はレジストリに永続化されるレコード種別の識別子。
// アドレス導出の名前空間タグを兼ねるため、種別が異なれば
// 同一シードからでも必ず異なるアドレスが導出される。
type RecordKind string

const (
	// RecordKindCompany は企業ベスティングレコード。
	RecordKindCompany RecordKind = "company_vesting"
	// RecordKindTreasury はトレジャリー（企業の未請求トークン保管口座）。
	RecordKindTreasury RecordKind = "vesting_treasury"
	// RecordKindEmployee は従業員ベスティングレコード。
	RecordKindEmployee RecordKind = "employee_vesting"
	// RecordKindTokenHolding は受益者ごとのトークン受取口座。
	RecordKindTokenHolding RecordKind = "token_holding"
	// RecordKindTokenMint はトークンミント。
	RecordKindTokenMint RecordKind = "token_mint"
)

// MaxCompanyNameBytes は企業名の最大バイト長。
// 企業名はアドレス導出のシードになるため、シード長の上限に合わせる。
const MaxCompanyNameBytes = 32

// Company は企業ベスティングレコードを表す。
// 企業ごとに1件作成され、作成後はトレジャリー残高を除きイミュータブル。
type Company struct {
	Address         string // 導出されたレコードアドレス（hex 32バイト）
	Owner           string // 作成者。従業員登録の唯一の権限者
	Mint            string // この企業がベスティングするトークン種別
	TreasuryAccount string // トレジャリー口座アドレス（導出値）
	CompanyName     string // アドレス導出のシードとなる一意な企業名
	Bump            uint8  // レコードアドレス導出時のバンプ値
	TreasuryBump    uint8  // トレジャリーアドレス導出時のバンプ値
	CreatedAt       time.Time
}
