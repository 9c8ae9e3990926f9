package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

type ctxKey struct{}

var level atomic.Int32

func init() {
	level.Store(int32(LevelInfo))
}

func SetLevel(l Level) {
	level.Store(int32(l))
}

func enabled(l Level) bool {
	return Level(level.Load()) <= l
}

// ParseLevel понимает debug, info, warn, error; остальное - info
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	}
	return LevelInfo
}

// Setup задаёт уровень и, если указан file, дублирует вывод в файл с ротацией
func Setup(lvl, file string) io.Closer {
	SetLevel(ParseLevel(lvl))
	if file == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil)
	}

	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    10, // МБ
		MaxBackups: 3,
		MaxAge:     28, // дней
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return rotator
}

// WithFields добавляет поля, которые попадут в каждую запись с этим контекстом
func WithFields(ctx context.Context, kv ...any) context.Context {
	prev, _ := ctx.Value(ctxKey{}).([]any)
	fields := make([]any, 0, len(prev)+len(kv))
	fields = append(fields, prev...)
	fields = append(fields, kv...)
	return context.WithValue(ctx, ctxKey{}, fields)
}

func Debug(ctx context.Context, msg string, kv ...any) {
	if enabled(LevelDebug) {
		write(ctx, "DEBUG", msg, kv)
	}
}

func Info(ctx context.Context, msg string, kv ...any) {
	if enabled(LevelInfo) {
		write(ctx, "INFO", msg, kv)
	}
}

func Warn(ctx context.Context, msg string, kv ...any) {
	if enabled(LevelWarn) {
		write(ctx, "WARN", msg, kv)
	}
}

func Error(ctx context.Context, err error, msg string, kv ...any) {
	if !enabled(LevelError) {
		return
	}
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	write(ctx, "ERROR", msg, kv)
}

func write(ctx context.Context, tag, msg string, kv []any) {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(tag)
	b.WriteString("] ")
	b.WriteString(msg)

	if ctx != nil {
		if fields, ok := ctx.Value(ctxKey{}).([]any); ok {
			appendFields(&b, fields)
		}
	}
	appendFields(&b, kv)
	log.Print(b.String())
}

func appendFields(b *strings.Builder, kv []any) {
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		var value any = "(нет значения)"
		if i+1 < len(kv) {
			value = kv[i+1]
		}
		fmt.Fprintf(b, " %s=%v", key, value)
	}
}

// SetOutput перенаправляет вывод всех уровней
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}
