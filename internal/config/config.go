// Package config はgatekeeperのプロセス設定を提供する。
//
// 設定は起動時に環境変数から一度だけ読み込まれ、以降は変更されない。
// 生成された Config は値としてサーバーに渡され、全リクエストから読み取り専用で共有される。
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// 環境変数名。既存のデプロイメントと互換性を保つため名前は変更しないこと。
const (
	EnvUpstreamURL     = "RENDER_API_URL"
	EnvUpstreamAPIKey  = "RENDER_API_KEY"
	EnvGameSecret      = "ROBLOX_SECRET"
	EnvAllowedUserIDs  = "ALLOWED_USER_IDS"
	EnvPort            = "PORT"
	EnvAuthTransport   = "AUTH_TRANSPORT"
	EnvUpstreamTimeout = "UPSTREAM_TIMEOUT"
	EnvAuditDBPath     = "AUDIT_DB_PATH"
)

const (
	// DefaultPort はPORTが未設定の場合のリッスンポート。
	DefaultPort = "10001"
	// DefaultUpstreamTimeout はアップストリーム呼び出しのタイムアウト。
	DefaultUpstreamTimeout = 10 * time.Second
)

// Transport は認証情報をリクエストのどこから取り出すかを表す。
type Transport string

const (
	// TransportHeader は x-roblox-secret / x-roblox-user-id ヘッダーから取り出す。
	TransportHeader Transport = "header"
	// TransportQuery は secret / userId クエリパラメータから取り出す。
	TransportQuery Transport = "query"
)

// ParseTransport は文字列をTransportに変換する。空文字列はヘッダー方式として扱う。
func ParseTransport(s string) (Transport, error) {
	switch Transport(strings.ToLower(strings.TrimSpace(s))) {
	case "", TransportHeader:
		return TransportHeader, nil
	case TransportQuery:
		return TransportQuery, nil
	default:
		return "", fmt.Errorf("不明な認証トランスポート: %q (header または query を指定してください)", s)
	}
}

// AllowList はアクセスを許可するユーザーIDの集合。
// 生成後は変更されないため、複数のgoroutineから安全に参照できる。
type AllowList struct {
	ids map[string]struct{}
}

// NewAllowList は指定されたIDからAllowListを生成する。空文字列は無視する。
func NewAllowList(ids ...string) AllowList {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return AllowList{ids: set}
}

// ParseAllowList はカンマ区切りの文字列をAllowListに変換する。
// 各要素の前後の空白は取り除く。空文字列は空の集合になる。
func ParseAllowList(s string) AllowList {
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return NewAllowList(parts...)
}

// Contains はidが集合に含まれるかを完全一致で判定する。
func (a AllowList) Contains(id string) bool {
	_, ok := a.ids[id]
	return ok
}

// Len は集合の要素数を返す。
func (a AllowList) Len() int {
	return len(a.ids)
}

// Values は集合の要素をソートして返す。
func (a AllowList) Values() []string {
	values := make([]string, 0, len(a.ids))
	for id := range a.ids {
		values = append(values, id)
	}
	sort.Strings(values)
	return values
}

// Config はgatekeeperの設定。起動時に一度だけ生成する。
type Config struct {
	// GameSecret は呼び出し元が提示すべき共有シークレット。空の場合は全リクエストを拒否する。
	GameSecret string
	// AllowedIdentities はアクセスを許可するユーザーID。
	AllowedIdentities AllowList
	// UpstreamURL はプロキシ先のURL。
	UpstreamURL string
	// UpstreamAPIKey はプロキシ先に送るBearerトークン。
	UpstreamAPIKey string
	// Port はサーバーのリッスンポート。
	Port string
	// Transport は認証情報の取り出し方式。
	Transport Transport
	// UpstreamTimeout はアップストリーム呼び出しのタイムアウト。
	UpstreamTimeout time.Duration
	// AuditDBPath は監査ログ用SQLiteファイルのパス。空の場合は監査ログを無効にする。
	AuditDBPath string
}

// Load は環境変数から設定を読み込む。
// getenvには通常 os.Getenv を渡す。テストでは任意の関数を渡せる。
func Load(getenv func(string) string) (Config, error) {
	transport, err := ParseTransport(getenv(EnvAuthTransport))
	if err != nil {
		return Config{}, err
	}

	timeout := DefaultUpstreamTimeout
	if v := getenv(EnvUpstreamTimeout); v != "" {
		timeout, err = time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%sの解析に失敗: %w", EnvUpstreamTimeout, err)
		}
		if timeout <= 0 {
			return Config{}, fmt.Errorf("%sは正の値である必要があります: %s", EnvUpstreamTimeout, v)
		}
	}

	return Config{
		GameSecret:        getenv(EnvGameSecret),
		AllowedIdentities: ParseAllowList(getenv(EnvAllowedUserIDs)),
		UpstreamURL:       getenv(EnvUpstreamURL),
		UpstreamAPIKey:    getenv(EnvUpstreamAPIKey),
		Port:              getEnvOr(getenv, EnvPort, DefaultPort),
		Transport:         transport,
		UpstreamTimeout:   timeout,
		AuditDBPath:       getenv(EnvAuditDBPath),
	}, nil
}

// Warnings は起動を止めるほどではない設定上の問題を返す。
func (c Config) Warnings() []string {
	var warnings []string
	if c.GameSecret == "" {
		warnings = append(warnings, fmt.Sprintf("'%s' が設定されていません。全てのリクエストが拒否されます。", EnvGameSecret))
	}
	if c.AllowedIdentities.Len() == 0 {
		warnings = append(warnings, fmt.Sprintf("'%s' が設定されていません。誰も接続できません。", EnvAllowedUserIDs))
	}
	return warnings
}

// UpstreamReady はアップストリームへの転送に必要な設定が揃っているかを返す。
func (c Config) UpstreamReady() bool {
	return c.UpstreamURL != "" && c.UpstreamAPIKey != ""
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(getenv func(string) string, key, defaultValue string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return defaultValue
}
