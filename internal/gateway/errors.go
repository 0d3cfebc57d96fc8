package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind はエラーの分類。監査ログの outcome にもそのまま使う。
type Kind string

const (
	// KindUnauthorized はシークレットまたはユーザーIDが不正・欠落していることを表す。
	KindUnauthorized Kind = "unauthorized"
	// KindForbidden はユーザーIDが許可リストに含まれないことを表す。
	KindForbidden Kind = "forbidden"
	// KindConfig はアップストリームの設定が欠けていることを表す。
	KindConfig Kind = "config_error"
	// KindUpstream はアップストリームが2xx以外を返したことを表す。
	KindUpstream Kind = "upstream_error"
	// KindNetwork はアップストリームに到達できない、またはレスポンスが解析できないことを表す。
	KindNetwork Kind = "network_error"
)

// outcomeForwarded は転送に成功したリクエストの outcome。
const outcomeForwarded = "forwarded"

// 呼び出し元に返すエラーメッセージ。既存のクライアントが文字列で判定しているため変更しないこと。
const (
	msgBadGameKey      = "Unauthorized (Bad Game Key)"
	msgMissingUserID   = "Unauthorized (Missing UserID)"
	msgNotWhitelisted  = "Forbidden (User not whitelisted)"
	msgInternal        = "Internal server error"
	msgUpstreamFailure = "Failed to fetch data from upstream"
)

// Error はリクエストを終了させるエラー。
// Message は呼び出し元に返す文言で、Err は原因（サーバー側のログにのみ出力する）。
type Error struct {
	// Kind はエラーの分類。
	Kind Kind
	// Status は呼び出し元に返すHTTPステータスコード。
	Status int
	// Message は呼び出し元に返すエラーメッセージ。
	Message string
	// Err は原因となったエラー。
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// 認可ゲートが返すエラー。errors.Is で判定できる。
var (
	ErrBadGameKey     = &Error{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Message: msgBadGameKey}
	ErrMissingUserID  = &Error{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Message: msgMissingUserID}
	ErrNotWhitelisted = &Error{Kind: KindForbidden, Status: http.StatusForbidden, Message: msgNotWhitelisted}
)

// errUpstreamNotConfigured はアップストリームのURLまたはAPIキーが未設定であることを表す。
var errUpstreamNotConfigured = errors.New("アップストリームのURLまたはAPIキーが設定されていません")

// configError はデプロイ設定の不備によるエラーを生成する。
func configError(err error) *Error {
	return &Error{Kind: KindConfig, Status: http.StatusInternalServerError, Message: msgInternal, Err: err}
}

// upstreamError はアップストリームのステータスをそのまま返すエラーを生成する。
func upstreamError(status int, err error) *Error {
	return &Error{Kind: KindUpstream, Status: status, Message: msgUpstreamFailure, Err: err}
}

// networkError は通信失敗・タイムアウト・解析失敗によるエラーを生成する。
func networkError(err error) *Error {
	return &Error{Kind: KindNetwork, Status: http.StatusInternalServerError, Message: msgInternal, Err: err}
}
