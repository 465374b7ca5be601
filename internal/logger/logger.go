// Package logger предоставляет логирование с префиксом компонента поверх zap.
// Запись буферизуется zap, вызовы не блокируют цикл отрисовки. Поддерживается
// логирование времени выполнения функций.
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	prefix string
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base   *zap.SugaredLogger
	once   sync.Once
)

func initBase() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		SetLevel(v)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil
	if path := os.Getenv("LOG_FILE"); path != "" {
		cfg.OutputPaths = []string{path}
		cfg.ErrorOutputPaths = []string{path}
	}
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewNop()
	}
	base = l.Sugar()
}

func sugar() *zap.SugaredLogger {
	once.Do(initBase)
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Use подменяет zap-логгер (например, zaptest или zap.NewNop в тестах).
func Use(l *zap.Logger) {
	once.Do(func() {})
	mu.Lock()
	base = l.WithOptions(zap.AddCallerSkip(1)).Sugar()
	mu.Unlock()
}

// SetLevel задаёт уровень: debug, info, warn, error. Пустая или неизвестная строка — info.
func SetLevel(l string) {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug", "trace":
		level.SetLevel(zapcore.DebugLevel)
	case "warn", "warning":
		level.SetLevel(zapcore.WarnLevel)
	case "error":
		level.SetLevel(zapcore.ErrorLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}
}

// SetPrefix задаёт префикс для всех последующих логов (например "client", "storeserver").
func SetPrefix(p string) {
	mu.Lock()
	prefix = p
	mu.Unlock()
}

func tag() string {
	mu.RLock()
	defer mu.RUnlock()
	if prefix == "" {
		return ""
	}
	return "[" + prefix + "] "
}

// Info пишет сообщение уровня info с префиксом.
func Info(v ...any) {
	sugar().Info(tag() + fmt.Sprint(v...))
}

// Infof форматирует и пишет с префиксом.
func Infof(format string, v ...any) {
	sugar().Info(tag() + fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...any) {
	sugar().Debug(tag() + fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...any) {
	sugar().Warn(tag() + fmt.Sprintf(format, v...))
}

// Error пишет ошибку с префиксом.
func Error(v ...any) {
	sugar().Error(tag() + fmt.Sprint(v...))
}

// Errorf форматирует ошибку с префиксом.
func Errorf(format string, v ...any) {
	sugar().Error(tag() + fmt.Sprintf(format, v...))
}

// With возвращает логгер с полями (request_id, collection и т.п.) для структурных записей.
func With(kv ...any) *zap.SugaredLogger {
	return sugar().With(kv...)
}

// LogDuration логирует имя функции и время выполнения в миллисекундах.
// На уровне info пишутся только вызовы дольше 100ms; на debug — все.
func LogDuration(fn string, start time.Time) {
	elapsed := time.Since(start)
	if level.Enabled(zapcore.DebugLevel) || elapsed >= 100*time.Millisecond {
		sugar().Infow(tag()+"duration", "fn", fn, "duration_ms", elapsed.Milliseconds())
	}
}

// DeferLogDuration возвращает функцию для вызова в defer: defer logger.DeferLogDuration("convService.Send", time.Now())().
func DeferLogDuration(fn string, start time.Time) func() {
	return func() { LogDuration(fn, start) }
}

// Sync сбрасывает буферы zap; вызывать перед выходом процесса.
func Sync() {
	_ = sugar().Sync()
}
