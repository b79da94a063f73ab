// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, vesting, funding, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidVestingTime = "INVALID_VESTING_TIME"
	ErrCodeInvalidCliffTime   = "INVALID_CLIFF_TIME"
	ErrCodeInvalidAmount      = "INVALID_AMOUNT"
	ErrCodeInvalidCompanyName = "INVALID_COMPANY_NAME"
	ErrCodeCompanyExists      = "COMPANY_EXISTS"
	ErrCodeCompanyNotFound    = "COMPANY_NOT_FOUND"
	ErrCodeEmployeeExists     = "EMPLOYEE_EXISTS"
	ErrCodeEmployeeNotFound   = "EMPLOYEE_NOT_FOUND"
	ErrCodeCliffNotPast       = "CLIFF_NOT_PAST"
	ErrCodeDepleted           = "DEPLETED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeAccountMismatch    = "ACCOUNT_MISMATCH"
	ErrCodeAmountOverflow     = "AMOUNT_OVERFLOW"
	ErrCodeDerivationFailed   = "DERIVATION_FAILED"
	ErrCodeMintNotFound       = "MINT_NOT_FOUND"
	ErrCodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	ErrCodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	ErrCodeInvalidAddress     = "INVALID_ADDRESS"
)

// NewInvalidVestingTimeError はベスティング期間が不正な場合のエラーを生成する。
func NewInvalidVestingTimeError(start, end int64) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidVestingTime,
		Message:  fmt.Sprintf("ベスティング期間が不正です: start=%d end=%d", start, end),
		Category: "validation",
		Action:   "開始時刻が終了時刻より前になるように指定してください。",
	}
}

// NewInvalidCliffTimeError はクリフ時刻が期間外の場合のエラーを生成する。
func NewInvalidCliffTimeError(cliff int64) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCliffTime,
		Message:  fmt.Sprintf("クリフ時刻が不正です: cliff=%d", cliff),
		Category: "validation",
		Action:   "クリフ時刻は開始時刻以上、終了時刻以下で指定してください。",
	}
}

// NewInvalidAmountError はトークン量が不正な場合のエラーを生成する。
func NewInvalidAmountError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAmount,
		Message:  "トークン量は1以上で指定してください。",
		Category: "validation",
		Action:   "total_amountに正の整数を指定してください。",
	}
}

// NewInvalidCompanyNameError は企業名が不正な場合のエラーを生成する。
func NewInvalidCompanyNameError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCompanyName,
		Message:  fmt.Sprintf("企業名が不正です: %s", reason),
		Category: "validation",
		Action:   fmt.Sprintf("企業名は1〜%dバイトで指定してください。", MaxCompanyNameBytes),
	}
}

// NewCompanyExistsError は企業名の重複エラーを生成する。
func NewCompanyExistsError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeCompanyExists,
		Message:  fmt.Sprintf("同名の企業レコードが既に存在します: %s", name),
		Category: "validation",
		Action:   "別の企業名を指定してください。",
	}
}

// NewCompanyNotFoundError は企業レコード未検出エラーを生成する。
func NewCompanyNotFoundError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeCompanyNotFound,
		Message:  fmt.Sprintf("指定された企業レコードが見つかりません: %s", name),
		Category: "vesting",
		Action:   "企業名を確認してください。",
	}
}

// NewEmployeeExistsError は従業員レコードの重複エラーを生成する。
func NewEmployeeExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeEmployeeExists,
		Message:  "この受益者の従業員レコードは既に存在します。",
		Category: "validation",
		Action:   "既存のレコードを確認してください。",
	}
}

// NewEmployeeNotFoundError は従業員レコード未検出エラーを生成する。
func NewEmployeeNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeEmployeeNotFound,
		Message:  "従業員レコードが見つかりません。",
		Category: "vesting",
		Action:   "企業名と受益者アドレスを確認してください。",
	}
}

// NewCliffNotPastError はクリフ到達前のクレームエラーを生成する。
func NewCliffNotPastError(cliff int64) *APIError {
	return &APIError{
		Code:     ErrCodeCliffNotPast,
		Message:  fmt.Sprintf("クリフ時刻に到達していないため、まだ請求できません: cliff=%d", cliff),
		Category: "vesting",
		Action:   "クリフ時刻を過ぎてから再度請求してください。",
	}
}

// NewDepletedError はトレジャリー残高不足エラーを生成する。
func NewDepletedError() *APIError {
	return &APIError{
		Code:     ErrCodeDepleted,
		Message:  "トレジャリーの残高が請求可能額を下回っています。",
		Category: "funding",
		Action:   "企業がトレジャリーに入金した後、再度請求してください。",
	}
}

// NewUnauthorizedError は署名者と権限者の不一致エラーを生成する。
func NewUnauthorizedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  fmt.Sprintf("この操作を実行する権限がありません: %s", reason),
		Category: "auth",
		Action:   "正しい鍵で署名したリクエストを送信してください。",
	}
}

// NewAccountMismatchError は導出アドレスと保存済み参照の不一致エラーを生成する。
// 権限検証の失敗として扱われ、リトライしても解決しない。
func NewAccountMismatchError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeAccountMismatch,
		Message:  fmt.Sprintf("アカウント参照が一致しません: %s", field),
		Category: "auth",
		Action:   "リクエストに指定したアカウントを確認してください。",
	}
}

// NewAmountOverflowError はベスティング計算のオーバーフローエラーを生成する。
func NewAmountOverflowError() *APIError {
	return &APIError{
		Code:     ErrCodeAmountOverflow,
		Message:  "ベスティング量の計算がオーバーフローしました。",
		Category: "system",
		Action:   "トークン量またはスケジュールを見直してください。",
	}
}

// NewDerivationFailedError はアドレス導出の探索空間枯渇エラーを生成する。
// 発生確率は無視できるほど小さく、リトライ可能な条件として扱う。
func NewDerivationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeDerivationFailed,
		Message:  "アドレスの導出に失敗しました。",
		Category: "system",
		Action:   "時間をおいて再度お試しください。",
	}
}

// NewMintNotFoundError はミント未検出エラーを生成する。
func NewMintNotFoundError(mint string) *APIError {
	return &APIError{
		Code:     ErrCodeMintNotFound,
		Message:  fmt.Sprintf("指定されたミントが見つかりません: %s", mint),
		Category: "validation",
		Action:   "ミントアドレスを確認してください。",
	}
}

// NewAccountNotFoundError はトークン口座未検出エラーを生成する。
func NewAccountNotFoundError(address string) *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  fmt.Sprintf("指定されたトークン口座が見つかりません: %s", address),
		Category: "validation",
		Action:   "口座アドレスを確認してください。",
	}
}

// NewInsufficientFundsError はトークン口座の残高不足エラーを生成する。
func NewInsufficientFundsError() *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientFunds,
		Message:  "口座の残高が不足しています。",
		Category: "funding",
		Action:   "残高を確認してから再度お試しください。",
	}
}

// NewInvalidAddressError はアドレス形式の不正エラーを生成する。
func NewInvalidAddressError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAddress,
		Message:  fmt.Sprintf("アドレスの形式が不正です: %s", field),
		Category: "validation",
		Action:   "アドレスは32バイトのhex文字列で指定してください。",
	}
}
