// Package audit はgatekeeperのアクセス監査ログを提供する。
//
// /getdata への各リクエストについて、どのゲートで判定されたか（あるいは転送されたか）を
// SQLiteに1行ずつ記録する。シークレットは記録しない。
package audit
