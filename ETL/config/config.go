package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SyncConfig содержит конфигурацию синхронизации
type SyncConfig struct {
	// Подключение к графовому хранилищу
	Graph GraphConfig `json:"graph"`

	// Журнал запусков в MySQL
	Journal DatabaseConfig `json:"journal"`

	// Журнал включен
	JournalEnabled bool `json:"journal_enabled"`

	// Каталог с результатами конвертеров
	DataDir string `json:"data_dir"`

	// Каталог логов; пустой - только stdout
	LogDir string `json:"log_dir"`

	// Интервал запуска в режиме по расписанию
	RunInterval time.Duration `json:"run_interval"`

	// Размеры пакетов
	NodeBatchSize int `json:"node_batch_size"`
	FactBatchSize int `json:"fact_batch_size"`
	EdgeBatchSize int `json:"edge_batch_size"`

	// Параллельная запись пакетов узлов
	Workers int `json:"workers"`

	// Ограничение темпа записи пакетов, 0 без ограничения
	BatchesPerSecond float64 `json:"batches_per_second"`

	// Повторы пакета при временных ошибках
	RetryAttempts int           `json:"retry_attempts"`
	RetryInterval time.Duration `json:"retry_interval"`
	BatchTimeout  time.Duration `json:"batch_timeout"`

	// Адрес HTTP API состояния; пустой - API выключен
	StatusAddr string `json:"status_addr"`

	// Включение/отключение подробного логирования
	EnableDetailedLogging bool `json:"enable_detailed_logging"`
}

// GraphConfig содержит настройки подключения к Neo4j
type GraphConfig struct {
	URI      string `json:"uri"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// DatabaseConfig содержит настройки подключения к базе данных
type DatabaseConfig struct {
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
}

// Значения конфигурации по умолчанию
var (
	DefaultGraphConfig = GraphConfig{
		URI:      "bolt://localhost:7687",
		User:     "neo4j",
		Password: "Password123!",
		Database: "neo4j",
	}

	DefaultJournalConfig = DatabaseConfig{
		Driver:   "mysql",
		Host:     "localhost",
		Port:     3306,
		User:     "root",
		Password: "",
		DBName:   "budget_sync",
	}
)

// DefaultSyncConfig возвращает конфигурацию по умолчанию
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Graph:                 DefaultGraphConfig,
		Journal:               DefaultJournalConfig,
		DataDir:               "data",
		RunInterval:           24 * time.Hour,
		NodeBatchSize:         10000,
		FactBatchSize:         5000,
		EdgeBatchSize:         5000,
		Workers:               1,
		RetryAttempts:         3,
		RetryInterval:         500 * time.Millisecond,
		BatchTimeout:          2 * time.Minute,
		EnableDetailedLogging: false,
	}
}

// GetConfig возвращает конфигурацию: значения по умолчанию, затем .env, затем переменные окружения
func GetConfig() (SyncConfig, error) {
	// .env необязателен
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return SyncConfig{}, fmt.Errorf("ошибка при чтении .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv применяет переменные окружения к конфигурации по умолчанию
func FromEnv(lookup func(string) (string, bool)) (SyncConfig, error) {
	config := DefaultSyncConfig()
	p := envParser{lookup: lookup}

	p.str("NEO4J_URI", &config.Graph.URI)
	p.str("NEO4J_USER", &config.Graph.User)
	p.str("NEO4J_PASSWORD", &config.Graph.Password)
	p.str("NEO4J_DATABASE", &config.Graph.Database)

	p.boolean("SYNC_JOURNAL_ENABLED", &config.JournalEnabled)
	p.str("JOURNAL_DB_HOST", &config.Journal.Host)
	p.integer("JOURNAL_DB_PORT", &config.Journal.Port)
	p.str("JOURNAL_DB_USER", &config.Journal.User)
	p.str("JOURNAL_DB_PASSWORD", &config.Journal.Password)
	p.str("JOURNAL_DB_NAME", &config.Journal.DBName)

	p.str("SYNC_DATA_DIR", &config.DataDir)
	p.str("SYNC_LOG_DIR", &config.LogDir)
	p.duration("SYNC_RUN_INTERVAL", &config.RunInterval)
	p.integer("SYNC_NODE_BATCH_SIZE", &config.NodeBatchSize)
	p.integer("SYNC_FACT_BATCH_SIZE", &config.FactBatchSize)
	p.integer("SYNC_EDGE_BATCH_SIZE", &config.EdgeBatchSize)
	p.integer("SYNC_WORKERS", &config.Workers)
	p.float("SYNC_BATCHES_PER_SECOND", &config.BatchesPerSecond)
	p.integer("SYNC_RETRY_ATTEMPTS", &config.RetryAttempts)
	p.duration("SYNC_RETRY_INTERVAL", &config.RetryInterval)
	p.duration("SYNC_BATCH_TIMEOUT", &config.BatchTimeout)
	p.str("SYNC_STATUS_ADDR", &config.StatusAddr)
	p.boolean("SYNC_VERBOSE", &config.EnableDetailedLogging)

	if len(p.errs) > 0 {
		return SyncConfig{}, errors.Join(p.errs...)
	}
	return config, nil
}

// Validate проверяет значения конфигурации
func (c SyncConfig) Validate() error {
	var errs []error
	if c.Graph.URI == "" {
		errs = append(errs, errors.New("не задан NEO4J_URI"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("не задан каталог данных"))
	}
	for name, v := range map[string]int{
		"SYNC_NODE_BATCH_SIZE": c.NodeBatchSize,
		"SYNC_FACT_BATCH_SIZE": c.FactBatchSize,
		"SYNC_EDGE_BATCH_SIZE": c.EdgeBatchSize,
		"SYNC_WORKERS":         c.Workers,
		"SYNC_RETRY_ATTEMPTS":  c.RetryAttempts,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s должен быть больше нуля: %d", name, v))
		}
	}
	if c.BatchesPerSecond < 0 {
		errs = append(errs, fmt.Errorf("SYNC_BATCHES_PER_SECOND не может быть отрицательным: %v", c.BatchesPerSecond))
	}
	if c.RunInterval <= 0 {
		errs = append(errs, fmt.Errorf("SYNC_RUN_INTERVAL должен быть больше нуля: %v", c.RunInterval))
	}
	return errors.Join(errs...)
}

// envParser накапливает ошибки разбора переменных окружения
type envParser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *envParser) value(name string) (string, bool) {
	v, ok := p.lookup(name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (p *envParser) str(name string, dst *string) {
	if v, ok := p.value(name); ok {
		*dst = v
	}
}

func (p *envParser) integer(name string, dst *int) {
	if v, ok := p.value(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: некорректное число %q", name, v))
			return
		}
		*dst = n
	}
}

func (p *envParser) float(name string, dst *float64) {
	if v, ok := p.value(name); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: некорректное число %q", name, v))
			return
		}
		*dst = f
	}
}

func (p *envParser) boolean(name string, dst *bool) {
	if v, ok := p.value(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: некорректное логическое значение %q", name, v))
			return
		}
		*dst = b
	}
}

func (p *envParser) duration(name string, dst *time.Duration) {
	if v, ok := p.value(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: некорректная длительность %q", name, v))
			return
		}
		*dst = d
	}
}
