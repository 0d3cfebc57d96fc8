package audit

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

// newTestStore はインメモリSQLiteを使用したテスト用Storeを生成する。
func newTestStore(t *testing.T) *Store {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDB接続に失敗: %v", err)
	}
	// インメモリDBは接続ごとに別物になるため1接続に固定する
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	s, err := New(sqlDB)
	if err != nil {
		t.Fatalf("Store生成に失敗: %v", err)
	}
	return s
}

// TestRecord はRecordとRecentを検証する。
func TestRecord(t *testing.T) {
	t.Parallel()

	t.Run("記録した内容が新しい順に取得できること", func(t *testing.T) {
		t.Parallel()

		s := newTestStore(t)
		ctx := context.Background()
		base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

		entries := []Entry{
			{RequestID: "req-1", UserID: "", Outcome: "unauthorized", Status: 401, CreatedAt: base},
			{RequestID: "req-2", UserID: "2", Outcome: "forbidden", Status: 403, CreatedAt: base.Add(100 * time.Millisecond)},
			{RequestID: "req-3", UserID: "1", Outcome: "forwarded", Status: 200, CreatedAt: base.Add(120 * time.Millisecond)},
		}
		for _, e := range entries {
			if err := s.Record(ctx, e); err != nil {
				t.Fatalf("Record()でエラーが発生: %v", err)
			}
		}

		got, err := s.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("Recent()でエラーが発生: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("len = %d, want 3", len(got))
		}
		if got[0].RequestID != "req-3" || got[1].RequestID != "req-2" || got[2].RequestID != "req-1" {
			t.Errorf("並び順が不正: %s, %s, %s", got[0].RequestID, got[1].RequestID, got[2].RequestID)
		}
		if got[0].UserID != "1" || got[0].Outcome != "forwarded" || got[0].Status != 200 {
			t.Errorf("got[0] = %+v", got[0])
		}
		if !got[0].CreatedAt.Equal(entries[2].CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, entries[2].CreatedAt)
		}
	})

	t.Run("limitを超える件数は返さないこと", func(t *testing.T) {
		t.Parallel()

		s := newTestStore(t)
		ctx := context.Background()
		for _, id := range []string{"a", "b", "c"} {
			if err := s.Record(ctx, Entry{RequestID: id, Outcome: "forwarded", Status: 200}); err != nil {
				t.Fatalf("Record()でエラーが発生: %v", err)
			}
		}

		got, err := s.Recent(ctx, 2)
		if err != nil {
			t.Fatalf("Recent()でエラーが発生: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("len = %d, want 2", len(got))
		}
	})

	t.Run("CreatedAtが未設定の場合は現在時刻が記録されること", func(t *testing.T) {
		t.Parallel()

		s := newTestStore(t)
		ctx := context.Background()
		before := time.Now().Add(-time.Second)
		if err := s.Record(ctx, Entry{RequestID: "now", Outcome: "forwarded", Status: 200}); err != nil {
			t.Fatalf("Record()でエラーが発生: %v", err)
		}

		got, err := s.Recent(ctx, 1)
		if err != nil {
			t.Fatalf("Recent()でエラーが発生: %v", err)
		}
		if len(got) != 1 || got[0].CreatedAt.Before(before) {
			t.Errorf("got = %+v", got)
		}
	})

	t.Run("同じリクエストIDは二重に記録できないこと", func(t *testing.T) {
		t.Parallel()

		s := newTestStore(t)
		ctx := context.Background()
		e := Entry{RequestID: "dup", Outcome: "forwarded", Status: 200}
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record()でエラーが発生: %v", err)
		}
		if err := s.Record(ctx, e); err == nil {
			t.Error("Record()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestOpen はファイルベースのStoreを検証する。
func TestOpen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open()でエラーが発生: %v", err)
	}
	if err := s.Record(context.Background(), Entry{RequestID: "file", Outcome: "forwarded", Status: 200}); err != nil {
		t.Fatalf("Record()でエラーが発生: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close()でエラーが発生: %v", err)
	}

	// 再度開いても記録が残っていること
	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("再Open()でエラーが発生: %v", err)
	}
	t.Cleanup(func() { reopened.Close() })

	got, err := reopened.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent()でエラーが発生: %v", err)
	}
	if len(got) != 1 || got[0].RequestID != "file" {
		t.Errorf("got = %+v", got)
	}
}
