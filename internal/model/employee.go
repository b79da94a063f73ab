// Package model はドメインモデルを定義する。
package model

import "time"

// Employee は従業員ベスティングレコードを表す。
// 受益者×企業ごとに1件作成され、成功したクレームのみがTotalWithdrawnを更新する。
// 不変条件: 0 <= TotalWithdrawn <= TotalAmount。
type Employee struct {
	Address        string // 導出されたレコードアドレス（hex 32バイト）
	Beneficiary    string // クレーム権限を持つ受益者。作成時に固定
	CompanyAddress string // 所属する企業レコードへの参照
	StartTime      int64  // ベスティング開始時刻（Unix秒）
	CliffTime      int64  // クリフ時刻。これ以前のクレームは全て拒否される
	EndTime        int64  // ベスティング終了時刻
	TotalAmount    uint64 // スケジュール全体で約束されたトークン総量
	TotalWithdrawn uint64 // 既に払い出された累計。単調非減少
	Bump           uint8  // レコードアドレス導出時のバンプ値
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// VestingState は従業員レコードのベスティング状態を表す。
type VestingState string

const (
	// VestingStateUnvested はクリフ到達前の状態。
	VestingStateUnvested VestingState = "unvested"
	// VestingStateVesting はクリフ通過後、全額払い出し前の状態。
	VestingStateVesting VestingState = "vesting"
	// VestingStateFullyClaimed は全額払い出し済みの終端状態。
	VestingStateFullyClaimed VestingState = "fully_claimed"
)

// StateAt は指定時刻におけるベスティング状態を返す。
// 状態遷移は成功したクレームと時刻の進行のみで駆動され、逆方向の遷移はない。
func (e *Employee) StateAt(now int64) VestingState {
	if e.TotalWithdrawn >= e.TotalAmount {
		return VestingStateFullyClaimed
	}
	if now < e.CliffTime {
		return VestingStateUnvested
	}
	return VestingStateVesting
}
