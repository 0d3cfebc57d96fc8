package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout は created_at の書式。文字列比較で時刻順に並ぶよう桁数を固定する。
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry は監査ログの1行。
type Entry struct {
	// RequestID はリクエストごとに採番されたID。
	RequestID string
	// UserID は呼び出し元が提示したユーザーID。提示されなかった場合は空。
	UserID string
	// Outcome は判定結果（"forwarded", "unauthorized" など）。
	Outcome string
	// Status は呼び出し元に返したHTTPステータスコード。
	Status int
	// CreatedAt は記録時刻（UTC）。
	CreatedAt time.Time
}

// Store はSQLiteに監査ログを書き込む。
// *sql.DB は内部で同期されるため、複数のリクエストから同時に使用できる。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// Open はpathのSQLiteファイルを開き、スキーマを適用したStoreを返す。
func Open(path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	s, err := New(sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// New は既存のデータベース接続からStoreを生成する。
func New(db *sql.DB) (*Store, error) {
	if err := initSchema(db); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &Store{db: db}, nil
}

// Record は監査ログを1行追記する。CreatedAtが未設定の場合は現在時刻を使う。
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO access_log (request_id, user_id, outcome, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.RequestID, e.UserID, e.Outcome, e.Status, e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("監査ログの書き込みに失敗: %w", err)
	}
	return nil
}

// Recent は新しい順に最大limit件の監査ログを返す。
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, user_id, outcome, status, created_at FROM access_log ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("監査ログの取得に失敗: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			createdAt string
		)
		if err := rows.Scan(&e.RequestID, &e.UserID, &e.Outcome, &e.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("監査ログの読み取りに失敗: %w", err)
		}
		e.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("記録時刻の解析に失敗: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("監査ログの取得に失敗: %w", err)
	}
	return entries, nil
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}
