// gatekeeperのエントリポイント。
// 環境変数から設定を読み込み、ゲームシークレットと許可リストで保護された
// GET /getdata を公開する。認可されたリクエストだけがアップストリームに転送される。
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/nao1215/gatekeeper/internal/audit"
	"github.com/nao1215/gatekeeper/internal/config"
	"github.com/nao1215/gatekeeper/internal/gateway"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("gatekeeperの起動に失敗: %v", err)
	}
}

// run は設定を読み込み、サーバーを起動する。サーバーが停止するまで戻らない。
func run(args []string) error {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	// フラグの既定値は環境変数の値。指定された場合のみ上書きする。
	flagSet := pflag.NewFlagSet("gatekeeper", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.Port, "port", cfg.Port, "リッスンポート (環境変数 "+config.EnvPort+")")
	transport := flagSet.String("auth-transport", string(cfg.Transport), "認証情報の取り出し方式: header または query (環境変数 "+config.EnvAuthTransport+")")
	flagSet.DurationVar(&cfg.UpstreamTimeout, "upstream-timeout", cfg.UpstreamTimeout, "アップストリーム呼び出しのタイムアウト (環境変数 "+config.EnvUpstreamTimeout+")")
	flagSet.StringVar(&cfg.AuditDBPath, "audit-db", cfg.AuditDBPath, "監査ログ用SQLiteファイル。空の場合は記録しない (環境変数 "+config.EnvAuditDBPath+")")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg.Transport, err = config.ParseTransport(*transport)
	if err != nil {
		return err
	}
	if cfg.UpstreamTimeout <= 0 {
		return fmt.Errorf("--upstream-timeout は正の値である必要があります: %s", cfg.UpstreamTimeout)
	}

	var opts []gateway.Option
	if cfg.AuditDBPath != "" {
		store, err := audit.Open(cfg.AuditDBPath)
		if err != nil {
			return fmt.Errorf("監査ログの初期化に失敗: %w", err)
		}
		defer store.Close()
		opts = append(opts, gateway.WithAuditRecorder(store))
		log.Printf("監査ログを記録します: %s", cfg.AuditDBPath)
	}

	for _, w := range cfg.Warnings() {
		log.Printf("[WARN] %s", w)
	}
	log.Printf("gatekeeperを起動します: 0.0.0.0:%s (transport=%s, upstream_timeout=%s)", cfg.Port, cfg.Transport, cfg.UpstreamTimeout)
	log.Printf("許可されたユーザー: %s", strings.Join(cfg.AllowedIdentities.Values(), ","))

	return gateway.NewServer(cfg, opts...).Run()
}
