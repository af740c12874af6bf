package logger

import (
	"log/slog"
	"strings"
	"sync"
)

// ModuleConfig manages per-module logging levels.
// Module names are dotted package paths relative to the module root
// ("runtime.speech", "runtime.recognition"); a more specific entry wins over
// its parents.
type ModuleConfig struct {
	mu           sync.RWMutex
	defaultLevel slog.Level
	modules      map[string]slog.Level
}

// NewModuleConfig creates a new ModuleConfig with the given default level.
func NewModuleConfig(defaultLevel slog.Level) *ModuleConfig {
	return &ModuleConfig{
		defaultLevel: defaultLevel,
		modules:      make(map[string]slog.Level),
	}
}

// SetModuleLevel sets the log level for a specific module.
func (m *ModuleConfig) SetModuleLevel(module string, level slog.Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modules[module] = level
}

// LevelFor returns the level for module, walking up the dotted hierarchy
// before falling back to the default level.
func (m *ModuleConfig) LevelFor(module string) slog.Level {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for {
		if level, ok := m.modules[module]; ok {
			return level
		}
		lastDot := strings.LastIndex(module, ".")
		if lastDot == -1 {
			return m.defaultLevel
		}
		module = module[:lastDot]
	}
}

// MinLevel returns the most verbose level configured anywhere.
func (m *ModuleConfig) MinLevel() slog.Level {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lowest := m.defaultLevel
	for _, level := range m.modules {
		if level < lowest {
			lowest = level
		}
	}
	return lowest
}

// Log format constants
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Settings is the logging section of the service configuration.
// It mirrors config.LoggingConfig to avoid an import cycle.
type Settings struct {
	Level        string
	Format       string // "json" or "text"
	CommonFields map[string]string
	Modules      map[string]string // module name -> level
}

// Configure applies settings to the global logger. A logger installed with
// SetLogger is left untouched.
func Configure(cfg *Settings) {
	if cfg == nil || customHandler != nil {
		return
	}

	level := slog.LevelInfo
	if cfg.Level != "" {
		level = ParseLevel(cfg.Level)
	}

	commonFields := make([]slog.Attr, 0, len(cfg.CommonFields))
	for k, v := range cfg.CommonFields {
		commonFields = append(commonFields, slog.String(k, v))
	}

	var modules *ModuleConfig
	if len(cfg.Modules) > 0 {
		modules = NewModuleConfig(level)
		for name, lvl := range cfg.Modules {
			modules.SetModuleLevel(name, ParseLevel(lvl))
		}
	}

	initLoggerWithConfig(level, commonFields, modules, cfg.Format == FormatJSON)
}

// initLoggerWithConfig rebuilds DefaultLogger.
func initLoggerWithConfig(level slog.Level, commonFields []slog.Attr, modules *ModuleConfig, useJSON bool) {
	opts := &slog.HandlerOptions{Level: level}
	if modules != nil {
		opts.Level = modules.MinLevel()
	}

	var base slog.Handler
	if useJSON {
		base = slog.NewJSONHandler(logOutput, opts)
	} else {
		base = slog.NewTextHandler(logOutput, opts)
	}

	DefaultLogger = slog.New(NewFieldHandler(base, modules, commonFields...))
}
