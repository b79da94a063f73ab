// Package address は決定論的なアカウントアドレスの導出を提供する。
//
// アドレスは(レコード種別タグ, シード列)からSHA-256で導出される純粋関数であり、
// 同一入力からは常に同一アドレスが得られる。種別タグが異なれば同一シードでも
// 衝突しない。導出されたアドレスはed25519曲線上の点にならないことが保証される
// ため、対応する秘密鍵は存在せず、同じシードを提示できるプログラムロジック
// だけがその権限者として振る舞える。
package address

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/hitoshi/vestry/internal/model"
)

// Size はアドレスのバイト長。
const Size = 32

// MaxSeedBytes は1シードあたりの最大バイト長。
const MaxSeedBytes = 32

// derivationMarker は導出ハッシュの末尾に付与される固定マーカー。
// 通常の公開鍵ハッシュと導出アドレスのドメインを分離する。
const derivationMarker = "VestryDerivedAddress"

// ErrExhausted はバンプ探索空間の枯渇を表す。
// 発生確率は無視できるほど小さく、呼び出し側はリトライ可能な条件として扱う。
var ErrExhausted = fmt.Errorf("address: bump search space exhausted")

// ErrOnCurve は保存済みバンプでの再導出結果が曲線上の点だった場合を表す。
// 正しく導出されたレコードでは発生せず、データ破損か改ざんを意味する。
var ErrOnCurve = fmt.Errorf("address: derived candidate lies on the ed25519 curve")

// Derive は種別タグとシード列から導出アドレスとバンプ値を返す。
// バンプを255から降順に探索し、曲線外に落ちる最初の候補を採用する。
// すべての候補が曲線上の点になった場合のみErrExhaustedを返す。
func Derive(kind model.RecordKind, seeds ...[]byte) (string, uint8, error) {
	for _, seed := range seeds {
		if len(seed) == 0 || len(seed) > MaxSeedBytes {
			return "", 0, fmt.Errorf("address: seed length must be 1..%d bytes, got %d", MaxSeedBytes, len(seed))
		}
	}

	for bump := 255; bump >= 0; bump-- {
		candidate := deriveCandidate(kind, uint8(bump), seeds)
		if !isOnCurve(candidate) {
			return hex.EncodeToString(candidate), uint8(bump), nil
		}
	}

	return "", 0, ErrExhausted
}

// DeriveWithBump は保存済みバンプ値を使ってアドレスを再導出する。
// 再導出結果が曲線上の点になる場合はErrOnCurveを返す。
func DeriveWithBump(kind model.RecordKind, bump uint8, seeds ...[]byte) (string, error) {
	for _, seed := range seeds {
		if len(seed) == 0 || len(seed) > MaxSeedBytes {
			return "", fmt.Errorf("address: seed length must be 1..%d bytes, got %d", MaxSeedBytes, len(seed))
		}
	}

	candidate := deriveCandidate(kind, bump, seeds)
	if isOnCurve(candidate) {
		return "", ErrOnCurve
	}

	return hex.EncodeToString(candidate), nil
}

// deriveCandidate は候補アドレスのハッシュ値を計算する。
func deriveCandidate(kind model.RecordKind, bump uint8, seeds [][]byte) []byte {
	h := sha256.New()
	h.Write([]byte(kind))
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write([]byte{bump})
	h.Write([]byte(derivationMarker))
	return h.Sum(nil)
}

// isOnCurve は32バイト列がed25519曲線上の点の正準エンコーディングかを判定する。
func isOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// FromPublicKey はed25519公開鍵をアドレス表現（hex）に変換する。
func FromPublicKey(pub ed25519.PublicKey) string {
	return hex.EncodeToString(pub)
}

// Parse はhex文字列をアドレスのバイト列に変換する。
// 32バイトのhex表現以外はエラーを返す。
func Parse(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("address: invalid hex: %w", err)
	}
	if len(b) != Size {
		return nil, fmt.Errorf("address: must be %d bytes, got %d", Size, len(b))
	}
	return b, nil
}

// IsValid はhex文字列が正しいアドレス表現かを返す。
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}
