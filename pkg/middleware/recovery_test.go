package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// TestRecovery はRecoveryミドルウェアを検証する。
func TestRecovery(t *testing.T) {
	t.Parallel()

	t.Run("パニックが発生した場合500とJSONエラーが返ること", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(RequestID(), Recovery())
		router.GET("/getdata", func(_ *gin.Context) {
			panic("テスト用パニック")
		})

		req := httptest.NewRequest(http.MethodGet, "/getdata", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
		}

		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["error"] != "Internal server error" {
			t.Errorf("error = %q, want %q", body["error"], "Internal server error")
		}
		if w.Header().Get(HeaderKeyRequestID) == "" {
			t.Error("パニック時にもX-Request-IDが設定されるべき")
		}
	})

	t.Run("error型のパニック値でも500が返ること", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Recovery())
		router.GET("/panic-error", func(_ *gin.Context) {
			panic(http.ErrAbortHandler)
		})

		req := httptest.NewRequest(http.MethodGet, "/panic-error", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
		}
	})

	t.Run("パニック後もサーバーが次のリクエストを処理できること", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Recovery())
		router.GET("/panic", func(_ *gin.Context) {
			panic("パニック発生")
		})
		router.GET("/ok", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "recovered"})
		})

		w1 := httptest.NewRecorder()
		router.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/panic", nil))
		if w1.Code != http.StatusInternalServerError {
			t.Errorf("1回目のステータスコード = %d, want %d", w1.Code, http.StatusInternalServerError)
		}

		w2 := httptest.NewRecorder()
		router.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/ok", nil))
		if w2.Code != http.StatusOK {
			t.Errorf("2回目のステータスコード = %d, want %d", w2.Code, http.StatusOK)
		}
	})
}

// TestRequestID はRequestIDミドルウェアを検証する。
func TestRequestID(t *testing.T) {
	t.Parallel()

	t.Run("ヘッダーとコンテキストに同じIDが設定されること", func(t *testing.T) {
		t.Parallel()

		var fromContext string
		router := gin.New()
		router.Use(RequestID())
		router.GET("/getdata", func(c *gin.Context) {
			fromContext = GetRequestID(c)
			c.Status(http.StatusNoContent)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/getdata", nil))

		got := w.Header().Get(HeaderKeyRequestID)
		if got == "" {
			t.Fatal("X-Request-IDが設定されていない")
		}
		if got != fromContext {
			t.Errorf("X-Request-ID = %q, context = %q", got, fromContext)
		}
	})

	t.Run("呼び出し元のX-Request-IDは使わずに毎回採番すること", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(RequestID())
		router.GET("/getdata", func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})

		seen := make(map[string]struct{})
		for range 3 {
			req := httptest.NewRequest(http.MethodGet, "/getdata", nil)
			req.Header.Set(HeaderKeyRequestID, "caller-chosen")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			id := w.Header().Get(HeaderKeyRequestID)
			if id == "caller-chosen" {
				t.Fatal("呼び出し元のIDがそのまま使われた")
			}
			seen[id] = struct{}{}
		}
		if len(seen) != 3 {
			t.Errorf("採番されたIDの種類 = %d, want 3", len(seen))
		}
	})

	t.Run("ミドルウェア未適用の場合は空文字列を返すこと", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		if got := GetRequestID(c); got != "" {
			t.Errorf("GetRequestID() = %q, want empty", got)
		}
	})
}
