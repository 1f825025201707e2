package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu       sync.RWMutex
	instance *zap.Logger
	level    = zap.NewAtomicLevel()
)

// Init construye el logger global. Sólo la primera llamada tiene efecto;
// el nivel se puede cambiar después con SetLevel.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		instance = build(cfg, level)
	}
}

// L retorna el logger global. Sin Init, usa dev/info.
func L() *zap.Logger {
	mu.RLock()
	l := instance
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(Config{})
	return L()
}

// SetLevel cambia el nivel en caliente sin reconstruir el logger.
func SetLevel(lvl string) { level.SetLevel(parseLevel(lvl)) }

// Replace instala l como global y devuelve una función que restaura el anterior.
func Replace(l *zap.Logger) (restore func()) {
	mu.Lock()
	prev := instance
	instance = l
	mu.Unlock()
	return func() {
		mu.Lock()
		instance = prev
		mu.Unlock()
	}
}

// Sync flushea buffers; va con defer en main.
func Sync() error {
	mu.RLock()
	l := instance
	mu.RUnlock()
	if l == nil {
		return nil
	}
	return l.Sync()
}
