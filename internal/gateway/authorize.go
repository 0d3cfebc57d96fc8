package gateway

import (
	"crypto/subtle"
	"net/http"

	"github.com/nao1215/gatekeeper/internal/config"
)

// 認証情報を運ぶヘッダー名とクエリパラメータ名。
const (
	headerKeySecret = "x-roblox-secret"
	headerKeyUserID = "x-roblox-user-id"
	queryKeySecret  = "secret"
	queryKeyUserID  = "userId"
)

// Credentials は呼び出し元がリクエストで提示した認証情報。
type Credentials struct {
	// Secret は提示されたゲームシークレット。
	Secret string
	// UserID は提示されたユーザーID。
	UserID string
}

// ExtractCredentials はtransportに従ってリクエストから認証情報を取り出す。
// クエリパラメータが複数指定された場合は最初の値を使う。
func ExtractCredentials(r *http.Request, transport config.Transport) Credentials {
	if transport == config.TransportQuery {
		q := r.URL.Query()
		return Credentials{
			Secret: q.Get(queryKeySecret),
			UserID: q.Get(queryKeyUserID),
		}
	}
	return Credentials{
		Secret: r.Header.Get(headerKeySecret),
		UserID: r.Header.Get(headerKeyUserID),
	}
}

// Authorize は認証情報を設定と照合する。I/Oもログ出力も行わない。
// 検査は次の順で行い、最初に失敗したものを返す。
//  1. ゲームシークレット（未設定・未提示・不一致は ErrBadGameKey）
//  2. ユーザーIDの有無（ErrMissingUserID）
//  3. 許可リストとの完全一致（ErrNotWhitelisted）
func Authorize(cfg config.Config, creds Credentials) error {
	if cfg.GameSecret == "" || creds.Secret == "" ||
		subtle.ConstantTimeCompare([]byte(creds.Secret), []byte(cfg.GameSecret)) != 1 {
		return ErrBadGameKey
	}
	if creds.UserID == "" {
		return ErrMissingUserID
	}
	if !cfg.AllowedIdentities.Contains(creds.UserID) {
		return ErrNotWhitelisted
	}
	return nil
}
