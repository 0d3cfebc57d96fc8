package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/gatekeeper/internal/audit"
	"github.com/nao1215/gatekeeper/internal/config"
	"github.com/nao1215/gatekeeper/pkg/httpclient"
	"github.com/nao1215/gatekeeper/pkg/middleware"
)

// AuditRecorder はリクエストごとの判定結果を記録する。
type AuditRecorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Server はgatekeeperのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// cfg は起動時に読み込んだ設定。読み取り専用。
	cfg config.Config
	// upstream はアップストリーム呼び出し用のクライアント。
	upstream *httpclient.Client
	// logger はゲートの判定結果の出力先。
	logger Logger
	// audit は監査ログの記録先。nilの場合は記録しない。
	audit AuditRecorder
}

// Option はServerの設定を変更する関数。
type Option func(*Server)

// WithLogger はログの出力先を差し替える。
func WithLogger(l Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithAuditRecorder は監査ログの記録先を設定する。
func WithAuditRecorder(r AuditRecorder) Option {
	return func(s *Server) {
		s.audit = r
	}
}

// NewServer は新しいgatekeeperサーバーを生成する。
func NewServer(cfg config.Config, opts ...Option) *Server {
	timeout := cfg.UpstreamTimeout
	if timeout <= 0 {
		timeout = config.DefaultUpstreamTimeout
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	upstream := httpclient.New(cfg.UpstreamURL,
		httpclient.WithBearerToken(cfg.UpstreamAPIKey),
		httpclient.WithTimeout(timeout),
	)

	s := &Server{
		router:   router,
		port:     cfg.Port,
		cfg:      cfg,
		upstream: upstream,
		logger:   stdLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()

	return s
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	s.router.GET("/getdata", s.handleGetData())
}

// handleGetData は認可ゲートを通過したリクエストにアップストリームのJSONを返すハンドラを返す。
func (s *Server) handleGetData() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := middleware.GetRequestID(c)
		creds := ExtractCredentials(c.Request, s.cfg.Transport)
		s.logger.Infof("request_id=%s /getdata へのリクエストを受信", requestID)

		if err := Authorize(s.cfg, creds); err != nil {
			s.fail(c, creds, err)
			return
		}
		s.logger.Infof("[SECURITY] request_id=%s user_id=%s を許可しました。アップストリームに問い合わせます", requestID, creds.UserID)

		body, err := s.fetch(c.Request.Context())
		if err != nil {
			s.fail(c, creds, err)
			return
		}

		s.logger.Infof("request_id=%s データの取得に成功しました。クライアントに返します", requestID)
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
		s.record(c, creds, outcomeForwarded, http.StatusOK)
	}
}

// fetch はアップストリームからJSONを取得する。
// 呼び出し元のクエリやボディは一切転送せず、Bearerトークンだけを付与する。
func (s *Server) fetch(ctx context.Context) (json.RawMessage, error) {
	if !s.cfg.UpstreamReady() {
		return nil, configError(errUpstreamNotConfigured)
	}

	var raw json.RawMessage
	if err := s.upstream.GetJSON(ctx, "", &raw); err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			return nil, upstreamError(statusErr.StatusCode, err)
		}
		return nil, networkError(err)
	}
	return raw, nil
}

// fail はエラーをログに出力し、JSONのエラーレスポンスを1つだけ返す。
// 原因（アップストリームのレスポンス本文など）は呼び出し元には返さない。
func (s *Server) fail(c *gin.Context, creds Credentials, err error) {
	var gerr *Error
	if !errors.As(err, &gerr) {
		gerr = networkError(err)
	}

	requestID := middleware.GetRequestID(c)
	switch gerr.Kind {
	case KindUnauthorized, KindForbidden:
		s.logger.Warnf("[SECURITY] request_id=%s user_id=%q リクエストを拒否しました: %v", requestID, creds.UserID, gerr)
	default:
		s.logger.Errorf("request_id=%s アップストリームからの取得に失敗しました: %v", requestID, gerr)
	}

	c.JSON(gerr.Status, gin.H{"error": gerr.Message})
	s.record(c, creds, string(gerr.Kind), gerr.Status)
}

// record は監査ログを記録する。記録に失敗してもレスポンスには影響させない。
func (s *Server) record(c *gin.Context, creds Credentials, outcome string, status int) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(context.WithoutCancel(c.Request.Context()), audit.Entry{
		RequestID: middleware.GetRequestID(c),
		UserID:    creds.UserID,
		Outcome:   outcome,
		Status:    status,
	})
	if err != nil {
		s.logger.Errorf("request_id=%s 監査ログの記録に失敗しました: %v", middleware.GetRequestID(c), err)
	}
}
