// Пакет config отвечает за сбор и предоставление конфигурации бота-чистильщика.
// Он:
//  1. читает переменные окружения из .env (через godotenv),
//  2. нормализует и валидирует входные значения,
//  3. накапливает предупреждения о подставленных значениях по умолчанию,
//  4. предоставляет потокобезопасный доступ к результату через R/W мьютекс.
//
// Бизнес-контекст: бот авторизуется токеном (BOT_TOKEN) поверх MTProto, поэтому
// ему нужны API_ID/API_HASH приложения. Остальные «ручки» управляют диалогами
// (кулдаун кнопок, таймаут неактивности), темпом удаления и логированием.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// EnvConfig описывает параметры, приходящие из окружения (.env). Значения уже
// прошли минимальную валидацию и нормализацию в loadConfig.
type EnvConfig struct {
	BotToken       string
	APIID          int
	APIHash        string
	SessionFile    string
	StateFile      string
	PeersCacheFile string
	LogLevel       string
	ThrottleRPS    int
	TestDC         bool
	// Диалоги
	CooldownSec      int
	DialogTimeoutSec int
	// Темп удаления
	PurgePauseEvery int
	PurgePauseMS    int
	// Файловое логирование
	LogFile           string
	LogFileLevel      string
	LogFileMaxSize    int
	LogFileMaxBackups int
	LogFileMaxAge     int
	LogFileCompress   bool
}

// Cooldown возвращает окно кулдауна кнопок как time.Duration.
func (e EnvConfig) Cooldown() time.Duration {
	return time.Duration(e.CooldownSec) * time.Second
}

// DialogTimeout возвращает окно неактивности диалога.
func (e EnvConfig) DialogTimeout() time.Duration {
	return time.Duration(e.DialogTimeoutSec) * time.Second
}

// PurgePause возвращает длительность самоторможения между пачками удалений.
func (e EnvConfig) PurgePause() time.Duration {
	return time.Duration(e.PurgePauseMS) * time.Millisecond
}

// Config хранит конфигурацию среды и накопленные предупреждения.
type Config struct {
	Env      EnvConfig
	warnings []string     // предупреждения, накопленные при чтении окружения
	mu       sync.RWMutex // защита конкурентного доступа к конфигурации
}

// Значения по умолчанию для параметров окружения.
const (
	defaultThrottleRPS       = 10
	defaultLogLevel          = "info"
	defaultSessionFile       = "data/bot_session.json"
	defaultStateFile         = "data/updates_state.bbolt"
	defaultPeersCacheFile    = "data/peers_cache.bbolt"
	defaultCooldownSec       = 30
	defaultDialogTimeoutSec  = 600
	defaultPurgePauseEvery   = 10
	defaultPurgePauseMS      = 1000
	defaultLogFileLevel      = "debug"
	defaultLogFileMaxSize    = 50
	defaultLogFileMaxBackups = 3
	defaultLogFileMaxAge     = 7
	defaultLogFileCompress   = true
)

var (
	cfgInstance *Config
	cfgDone     bool
)

// Load — точка входа для инициализации глобальной конфигурации. Повторный вызов
// запрещён, чтобы избежать гонок конфигурации на старте.
func Load(envPath string) error {
	if cfgDone {
		return errors.New("config already loaded")
	}
	newCfg, err := loadConfig(envPath)
	if err != nil {
		return err
	}
	cfgInstance = newCfg
	cfgDone = true
	return nil
}

// loadConfig выполняет фактическую загрузку/валидацию без установки глобального
// состояния. Отсутствующий .env не фатален: переменные могут прийти из окружения.
func loadConfig(envPath string) (*Config, error) {
	var warnings []string

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			appendWarningf(&warnings, "failed to load %s: %v; using process environment", envPath, err)
		}
	}

	botToken := strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	if botToken == "" {
		return nil, errors.New("env BOT_TOKEN must be set")
	}

	apiID, err := parseRequiredInt("API_ID")
	if err != nil {
		return nil, err
	}

	apiHash := strings.TrimSpace(os.Getenv("API_HASH"))
	if apiHash == "" {
		return nil, errors.New("env API_HASH must be set")
	}

	env := EnvConfig{
		BotToken:          botToken,
		APIID:             apiID,
		APIHash:           apiHash,
		SessionFile:       sanitizeFile("SESSION_FILE", os.Getenv("SESSION_FILE"), defaultSessionFile, &warnings),
		StateFile:         sanitizeFile("STATE_FILE", os.Getenv("STATE_FILE"), defaultStateFile, &warnings),
		PeersCacheFile:    sanitizeFile("PEERS_CACHE_FILE", os.Getenv("PEERS_CACHE_FILE"), defaultPeersCacheFile, &warnings),
		LogLevel:          sanitizeLogLevel("LOG_LEVEL", os.Getenv("LOG_LEVEL"), defaultLogLevel, &warnings),
		ThrottleRPS:       parseIntDefault("THROTTLE_RPS", defaultThrottleRPS, greaterThanZero, &warnings),
		TestDC:            strings.EqualFold(strings.TrimSpace(os.Getenv("TEST_DC")), "true"),
		CooldownSec:       parseIntDefault("COOLDOWN_SEC", defaultCooldownSec, nonNegative, &warnings),
		DialogTimeoutSec:  parseIntDefault("DIALOG_TIMEOUT_SEC", defaultDialogTimeoutSec, greaterThanZero, &warnings),
		PurgePauseEvery:   parseIntDefault("PURGE_PAUSE_EVERY", defaultPurgePauseEvery, greaterThanZero, &warnings),
		PurgePauseMS:      parseIntDefault("PURGE_PAUSE_MS", defaultPurgePauseMS, nonNegative, &warnings),
		LogFile:           strings.TrimSpace(os.Getenv("LOG_FILE")),
		LogFileLevel:      sanitizeLogLevel("LOG_FILE_LEVEL", os.Getenv("LOG_FILE_LEVEL"), defaultLogFileLevel, &warnings),
		LogFileMaxSize:    parseIntDefault("LOG_FILE_MAX_SIZE_MB", defaultLogFileMaxSize, greaterThanZero, &warnings),
		LogFileMaxBackups: parseIntDefault("LOG_FILE_MAX_BACKUPS", defaultLogFileMaxBackups, nonNegative, &warnings),
		LogFileMaxAge:     parseIntDefault("LOG_FILE_MAX_AGE_DAYS", defaultLogFileMaxAge, nonNegative, &warnings),
		LogFileCompress:   parseBoolDefault("LOG_FILE_COMPRESS", defaultLogFileCompress, &warnings),
	}

	return &Config{
		Env:      env,
		warnings: warnings,
	}, nil
}

// Warnings возвращает накопленные предупреждения (копию).
func Warnings() []string {
	if cfgInstance == nil {
		return nil
	}
	cfgInstance.mu.RLock()
	defer cfgInstance.mu.RUnlock()
	result := make([]string, len(cfgInstance.warnings))
	copy(result, cfgInstance.warnings)
	return result
}

// Env возвращает EnvConfig из глобального singleton. Это неизменяемый снимок
// на момент загрузки.
func Env() EnvConfig {
	if cfgInstance == nil {
		return EnvConfig{}
	}
	cfgInstance.mu.RLock()
	defer cfgInstance.mu.RUnlock()
	return cfgInstance.Env
}

// parseRequiredInt читает обязательную целочисленную переменную окружения name.
func parseRequiredInt(name string) (int, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return 0, fmt.Errorf("env %s must be set", name)
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("env %s must be a valid integer: %w", name, err)
	}
	return v, nil
}

// parseIntDefault читает name как int. Если пусто/некорректно/не проходит
// validator — возвращает defaultVal и пишет предупреждение.
func parseIntDefault(name string, defaultVal int, validator func(int) bool, warnings *[]string) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		appendWarningf(warnings, "env %s is not set; using default %d", name, defaultVal)
		return defaultVal
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is not a valid integer; using default %d", name, value, defaultVal)
		return defaultVal
	}
	if validator != nil && !validator(v) {
		appendWarningf(warnings, "env %s value %d does not satisfy constraints; using default %d", name, v, defaultVal)
		return defaultVal
	}
	return v
}

func appendWarningf(warnings *[]string, format string, args ...any) {
	if warnings == nil {
		return
	}
	*warnings = append(*warnings, fmt.Sprintf(format, args...))
}

func greaterThanZero(v int) bool { return v > 0 }
func nonNegative(v int) bool     { return v >= 0 }

// parseBoolDefault читает name как bool. Если пусто/некорректно — defaultVal и предупреждение.
func parseBoolDefault(name string, defaultVal bool, warnings *[]string) bool {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		appendWarningf(warnings, "env %s is not set; using default %v", name, defaultVal)
		return defaultVal
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is not a valid boolean; using default %v", name, value, defaultVal)
		return defaultVal
	}
	return v
}

// sanitizeLogLevel ограничивает значения набором {debug, info, warn, error}.
func sanitizeLogLevel(name, level, defaultVal string, warnings *[]string) string {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		appendWarningf(warnings, "env %s is not set; using default %q", name, defaultVal)
		return defaultVal
	}
	switch lvl {
	case "debug", "info", "warn", "error":
		return lvl
	default:
		appendWarningf(warnings, "env %s value %q is invalid; using default %q", name, level, defaultVal)
		return defaultVal
	}
}

// sanitizeFile возвращает путь к файлу; пустое значение заменяется fallback.
func sanitizeFile(name, value, fallback string, warnings *[]string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		appendWarningf(warnings, "env %s is not set; using default %q", name, fallback)
		return fallback
	}
	return v
}
