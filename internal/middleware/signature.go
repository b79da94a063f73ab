// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
)

// 署名検証用のリクエストヘッダー
const (
	// HeaderPublicKey は呼び出し元のed25519公開鍵（hex）を指定するヘッダー。
	HeaderPublicKey = "X-Vestry-Public-Key"
	// HeaderSignature は署名対象メッセージへの署名（hex）を指定するヘッダー。
	HeaderSignature = "X-Vestry-Signature"
)

// maxBodyBytes は署名検証のために読み込むボディの最大バイト数。
const maxBodyBytes = 1 << 20 // 1MiB

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// callerContextKey はリクエストコンテキストに呼び出し元アドレスを格納するためのキー。
var callerContextKey = contextKey("caller")

// SigningMessage は署名対象の正規化メッセージを構築する。
// METHOD、PATH、ボディのSHA-256（hex）を改行で連結したもの。
func SigningMessage(method, path string, body []byte) []byte {
	bodyHash := sha256.Sum256(body)
	return []byte(method + "\n" + path + "\n" + hex.EncodeToString(bodyHash[:]))
}

// NewSignatureMiddleware はリクエストのed25519署名を検証するミドルウェアを返す。
//
// 呼び出し元はX-Vestry-Public-Keyに公開鍵、X-Vestry-Signatureに
// SigningMessageへの署名をそれぞれhexで付与する。検証に成功した場合、
// 公開鍵のアドレス表現（hex）を呼び出し元としてコンテキストに注入する。
// 署名のない、または検証に失敗したリクエストには401を返す。
func NewSignatureMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pubHex := r.Header.Get(HeaderPublicKey)
			sigHex := r.Header.Get(HeaderSignature)
			if pubHex == "" || sigHex == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			pub, err := hex.DecodeString(pubHex)
			if err != nil || len(pub) != ed25519.PublicKeySize {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			sig, err := hex.DecodeString(sigHex)
			if err != nil || len(sig) != ed25519.SignatureSize {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			// 署名検証のためにボディを読み、ハンドラーが再度読めるように差し戻す
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil {
				http.Error(w, "failed to read request body", http.StatusBadRequest)
				return
			}
			r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			message := SigningMessage(r.Method, r.URL.Path, body)
			if !ed25519.Verify(ed25519.PublicKey(pub), message, sig) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			// 検証済みの呼び出し元アドレスをコンテキストに注入
			ctx := context.WithValue(r.Context(), callerContextKey, pubHex)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFromContext はリクエストコンテキストから検証済みの呼び出し元アドレスを取得する。
// 署名ミドルウェアを通過したリクエストでのみ有効。
func CallerFromContext(ctx context.Context) (string, error) {
	caller, ok := ctx.Value(callerContextKey).(string)
	if !ok || caller == "" {
		return "", fmt.Errorf("caller not found in context")
	}
	return caller, nil
}

// ContextWithCaller はコンテキストに呼び出し元アドレスを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}
