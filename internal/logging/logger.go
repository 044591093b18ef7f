package logging

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"car-advisor/internal/logging/types"
)

// sinkSet is shared by a root MultiLogger and every logger derived from it, so
// adapters added later are visible to children created earlier.
type sinkSet struct {
	mu       sync.RWMutex
	adapters map[string]types.LogAdapter
	level    atomic.Int32
}

// MultiLogger fans entries out to every registered adapter
type MultiLogger struct {
	sinks   *sinkSet
	context context.Context
	fields  map[string]interface{}
}

// NewMultiLogger creates a new MultiLogger instance
func NewMultiLogger() *MultiLogger {
	sinks := &sinkSet{adapters: make(map[string]types.LogAdapter)}
	sinks.level.Store(int32(InfoLevel))
	return &MultiLogger{
		sinks:   sinks,
		context: context.Background(),
		fields:  make(map[string]interface{}),
	}
}

func (l *MultiLogger) Debug(message string, fields ...map[string]interface{}) {
	l.log(DebugLevel, message, fields...)
}

func (l *MultiLogger) Info(message string, fields ...map[string]interface{}) {
	l.log(InfoLevel, message, fields...)
}

func (l *MultiLogger) Warn(message string, fields ...map[string]interface{}) {
	l.log(WarnLevel, message, fields...)
}

func (l *MultiLogger) Error(message string, fields ...map[string]interface{}) {
	l.log(ErrorLevel, message, fields...)
}

// Fatal logs a fatal message, flushes all adapters and exits
func (l *MultiLogger) Fatal(message string, fields ...map[string]interface{}) {
	l.log(FatalLevel, message, fields...)
	l.Close()
	os.Exit(1)
}

func (l *MultiLogger) log(level LogLevel, message string, fields ...map[string]interface{}) {
	if level < l.GetLevel() {
		return
	}

	entry := &types.LogEntry{
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
		Context:   l.context,
		Fields:    l.mergeFields(fields...),
	}

	l.sinks.mu.RLock()
	defer l.sinks.mu.RUnlock()

	for name, adapter := range l.sinks.adapters {
		if err := adapter.Write(entry); err != nil {
			// stderr, not the logger itself, to avoid recursion
			fmt.Fprintf(os.Stderr, "logging adapter %s error: %v\n", name, err)
		}
	}
}

// WithContext returns a derived logger bound to ctx
func (l *MultiLogger) WithContext(ctx context.Context) Logger {
	return &MultiLogger{sinks: l.sinks, context: ctx, fields: l.copyFields()}
}

// WithField returns a derived logger that always adds key=value
func (l *MultiLogger) WithField(key string, value interface{}) Logger {
	fields := l.copyFields()
	fields[key] = value
	return &MultiLogger{sinks: l.sinks, context: l.context, fields: fields}
}

// WithFields returns a derived logger that always adds fields
func (l *MultiLogger) WithFields(fields map[string]interface{}) Logger {
	merged := l.copyFields()
	for k, v := range fields {
		merged[k] = v
	}
	return &MultiLogger{sinks: l.sinks, context: l.context, fields: merged}
}

// SetLevel sets the minimum level for this logger and all loggers sharing its adapters
func (l *MultiLogger) SetLevel(level LogLevel) {
	l.sinks.level.Store(int32(level))
}

func (l *MultiLogger) GetLevel() LogLevel {
	return LogLevel(l.sinks.level.Load())
}

// AddAdapter registers a new adapter; names must be unique
func (l *MultiLogger) AddAdapter(adapter types.LogAdapter) error {
	l.sinks.mu.Lock()
	defer l.sinks.mu.Unlock()

	name := adapter.Name()
	if _, exists := l.sinks.adapters[name]; exists {
		return fmt.Errorf("adapter %s already exists", name)
	}
	l.sinks.adapters[name] = adapter
	return nil
}

// RemoveAdapter closes and unregisters an adapter
func (l *MultiLogger) RemoveAdapter(adapterName string) error {
	l.sinks.mu.Lock()
	defer l.sinks.mu.Unlock()

	adapter, exists := l.sinks.adapters[adapterName]
	if !exists {
		return fmt.Errorf("adapter %s not found", adapterName)
	}
	if err := adapter.Close(); err != nil {
		return fmt.Errorf("failed to close adapter %s: %w", adapterName, err)
	}
	delete(l.sinks.adapters, adapterName)
	return nil
}

// Close flushes and closes all adapters
func (l *MultiLogger) Close() error {
	l.sinks.mu.Lock()
	defer l.sinks.mu.Unlock()

	var errs []string
	for name, adapter := range l.sinks.adapters {
		_ = adapter.Sync()
		if err := adapter.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("adapter %s: %v", name, err))
		}
	}
	l.sinks.adapters = make(map[string]types.LogAdapter)

	if len(errs) > 0 {
		return fmt.Errorf("failed to close adapters: %s", strings.Join(errs, ", "))
	}
	return nil
}

func (l *MultiLogger) copyFields() map[string]interface{} {
	fields := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return fields
}

func (l *MultiLogger) mergeFields(additionalFields ...map[string]interface{}) map[string]interface{} {
	fields := l.copyFields()
	for _, fieldMap := range additionalFields {
		for k, v := range fieldMap {
			fields[k] = v
		}
	}
	return fields
}
