// internal/logger/pretty.go
package logger

import (
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap/zapcore"
)

var levelLabels = map[zapcore.Level]string{
	zapcore.DebugLevel:  color.New(color.FgCyan).Sprint("DBG"),
	zapcore.InfoLevel:   color.New(color.FgGreen).Sprint("INF"),
	zapcore.WarnLevel:   color.New(color.FgYellow).Sprint("WRN"),
	zapcore.ErrorLevel:  color.New(color.FgRed).Sprint("ERR"),
	zapcore.DPanicLevel: color.New(color.FgRed, color.Bold).Sprint("PNC"),
	zapcore.PanicLevel:  color.New(color.FgRed, color.Bold).Sprint("PNC"),
	zapcore.FatalLevel:  color.New(color.FgRed, color.Bold).Sprint("FTL"),
}

// PrettyEncoder is the short console format used by the CLI: clock time,
// colored three letter level, logger name and message, no caller.
func PrettyEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          "logger",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		ConsoleSeparator: " ",
		EncodeLevel:      prettyLevel,
		EncodeTime:       zapcore.TimeEncoderOfLayout(time.TimeOnly),
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeName:       zapcore.FullNameEncoder,
	})
}

func prettyLevel(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if label, ok := levelLabels[level]; ok {
		enc.AppendString(label)
		return
	}
	enc.AppendString(level.CapitalString())
}

// ShortenAddress сокращает адрес до вида "AbCd...WxYz".
func ShortenAddress(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
}

// ShortenSignature сокращает подпись транзакции.
func ShortenSignature(sig string) string {
	if len(sig) <= 16 {
		return sig
	}
	return sig[:8] + "..." + sig[len(sig)-8:]
}
