package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	once     sync.Once
	instance *zap.Logger
)

// Init inicializa el logger singleton del IdP con la configuración dada.
// Es idempotente: solo la primera llamada tiene efecto. Debe llamarse
// al inicio del proceso (cmd/idp).
func Init(cfg Config) {
	once.Do(func() {
		instance = build(cfg)
	})
}

// L retorna el logger singleton. Si Init() no fue llamado, crea uno
// por defecto (dev, info) para no romper tests y tooling.
func L() *zap.Logger {
	if instance == nil {
		Init(Config{Env: "dev", Level: "info"})
	}
	return instance
}

// Named retorna un logger con nombre de componente (ej: "refresh", "codes").
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// With retorna un logger con campos persistentes (ej: client_id en un flow).
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// Sync flushea buffers pendientes. Llamar con defer en main.
func Sync() error {
	if instance != nil {
		return instance.Sync()
	}
	return nil
}
