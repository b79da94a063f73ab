// Package vesting はベスティングスケジュールの検証と権利確定量の計算を提供する。
package vesting

import (
	"math"

	"github.com/hitoshi/vestry/internal/model"
)

// Schedule はベスティングスケジュールのパラメータを表す。
// StartTime <= CliffTime <= EndTime が成立していなければならない。
type Schedule struct {
	StartTime   int64
	CliffTime   int64
	EndTime     int64
	TotalAmount uint64
}

// Validate はスケジュールパラメータを検証する。
// 期間が逆転または長さゼロの場合はINVALID_VESTING_TIME、
// クリフが期間外の場合はINVALID_CLIFF_TIME、
// トークン量がゼロの場合はINVALID_AMOUNTを返す。
func (s Schedule) Validate() error {
	if s.StartTime >= s.EndTime {
		return model.NewInvalidVestingTimeError(s.StartTime, s.EndTime)
	}
	if s.CliffTime < s.StartTime || s.CliffTime > s.EndTime {
		return model.NewInvalidCliffTimeError(s.CliffTime)
	}
	if s.TotalAmount == 0 {
		return model.NewInvalidAmountError()
	}
	return nil
}

// VestedAt は指定時刻における権利確定済みトークン量を返す。
//
//   - now < CliffTime の場合は0
//   - now >= EndTime の場合はTotalAmount（線形式と一致するが、明示分岐を正とする）
//   - それ以外は TotalAmount * (now - StartTime) / (EndTime - StartTime) の
//     ゼロ方向切り捨て整数演算
//
// 乗算がuint64をオーバーフローする場合はラップせず、AMOUNT_OVERFLOWで拒否する。
func (s Schedule) VestedAt(now int64) (uint64, error) {
	if now < s.CliffTime {
		return 0, nil
	}
	if now >= s.EndTime {
		return s.TotalAmount, nil
	}

	elapsed := uint64(now - s.StartTime)
	duration := uint64(s.EndTime - s.StartTime)

	if elapsed != 0 && s.TotalAmount > math.MaxUint64/elapsed {
		return 0, model.NewAmountOverflowError()
	}

	return s.TotalAmount * elapsed / duration, nil
}

// ClaimableAt は指定時刻に請求可能なトークン量を返す。
// 既払い出し量が権利確定量を超えている場合は会計上の不整合であり、
// DEPLETEDとして中断する。
func (s Schedule) ClaimableAt(now int64, totalWithdrawn uint64) (uint64, error) {
	vested, err := s.VestedAt(now)
	if err != nil {
		return 0, err
	}
	if totalWithdrawn > vested {
		return 0, model.NewDepletedError()
	}
	return vested - totalWithdrawn, nil
}
