// internal/logger/config.go
package logger

type Config struct {
	File       string
	MaxSize    int  // мегабайты
	MaxAge     int  // дни
	MaxBackups int  // количество файлов
	Compress   bool // сжимать ротированные файлы
	// Development включает debug уровень.
	Development bool
	// Console дублирует логи в stdout. В TUI режиме выключено.
	Console bool
	// Pretty заменяет console encoder на цветной короткий формат.
	Pretty bool
	// Buffer получает копию записей для панели логов в TUI.
	Buffer *Buffer
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		File:       "logs/memeswap.log",
		MaxSize:    100,
		MaxAge:     7,
		MaxBackups: 3,
		Compress:   true,
		Console:    true,
	}
}
