package audit

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。access_log は追記のみで、更新・削除は行わない。
const schema = `
CREATE TABLE IF NOT EXISTS access_log (
    request_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL DEFAULT '',
    outcome TEXT NOT NULL,
    status INTEGER NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_access_log_created_at
    ON access_log(created_at);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
