// Package model はドメインモデルを定義する。
package model

import "time"

// TokenMint は代替可能トークンの種別（発行定義）を表す。
type TokenMint struct {
	Address   string // ミントアドレス（hex 32バイト）
	Authority string // 追加発行の権限者
	Decimals  uint8  // 小数点以下桁数
	Supply    uint64 // 発行済み総量
	CreatedAt time.Time
}

// TokenAccount はトークン残高を保持する口座を表す。
// Authorityが通常の公開鍵であれば署名者本人が、導出アドレスであれば
// シードを提示できるプログラムロジックのみが残高を動かせる。
type TokenAccount struct {
	Address   string // 口座アドレス（hex 32バイト）
	Mint      string // 保持するトークン種別
	Authority string // 支出権限者
	Balance   uint64 // 現在残高
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClaimRecord は成功した非ゼロクレームのジャーナル行を表す。
// 再現性と監査のために記録され、コアの不変条件には関与しない。
type ClaimRecord struct {
	ID              string // uuid
	EmployeeAddress string
	Amount          uint64 // 今回払い出された量
	VestedAtClaim   uint64 // クレーム時点のベスト済み総量
	ClaimedAt       time.Time
}
