// Package httpclient はアップストリームサービスへのHTTP通信を行うクライアントを提供する。
//
// gatekeeperがアップストリームからJSONを取得する際に使用する。
// タイムアウトとBearerトークンの付与を一箇所にまとめ、
// 2xx以外の応答は StatusError として呼び出し元に返す。
package httpclient
