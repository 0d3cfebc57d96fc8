// Package gateway はgatekeeperのHTTPサーバーを提供する。
//
// GET /getdata の1ルートだけを公開する。リクエストはゲームシークレットの照合、
// ユーザーIDの存在確認、許可リストとの照合の順に検査され、全て通過した場合のみ
// 設定されたアップストリームにBearerトークン付きでGETを送り、そのJSONを返す。
// いずれかの検査で拒否されたリクエストはアップストリームに到達しない。
package gateway
