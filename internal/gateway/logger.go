package gateway

import "log"

// Logger はゲートの判定結果とアップストリーム呼び出しの結果を出力する。
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// stdLogger は標準のlogパッケージに出力するLogger。
type stdLogger struct{}

func (stdLogger) Infof(format string, args ...any) {
	log.Printf("[INFO] "+format, args...)
}

func (stdLogger) Warnf(format string, args ...any) {
	log.Printf("[WARN] "+format, args...)
}

func (stdLogger) Errorf(format string, args ...any) {
	log.Printf("[ERROR] "+format, args...)
}
