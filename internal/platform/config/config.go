package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"pgfnsync/internal/enrichment"
	pstrings "pgfnsync/pkg/platform/strings"
)

// Config is the full process configuration. It is built once in main and
// passed by value into constructors.
type Config struct {
	Bitrix        BitrixConfig
	Registry      RegistryConfig
	Automation    AutomationConfig
	ErrorHandling ErrorHandlingConfig
	Logging       LoggingConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Monitor       ServerConfig
	RegistryAPI   RegistryAPIConfig
}

// BitrixConfig captures the CRM webhook endpoint and the pipeline to watch.
type BitrixConfig struct {
	APIURL        string
	Timeout       time.Duration
	HealthTimeout time.Duration

	TargetPipeline int
	TargetStages   []string

	Fields enrichment.FieldKeys
	// TaxpayerField holds the CNPJ directly on the deal.
	TaxpayerField string
	// CompanyTaxpayerField holds the CNPJ on the related company.
	CompanyTaxpayerField string
}

// RegistryConfig configures the PGFN lookup client.
type RegistryConfig struct {
	BaseURL       string
	Timeout       time.Duration
	HealthTimeout time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration
	UserAgent     string

	// BreakerFailures consecutive exhausted lookups open the breaker for BreakerOpenFor.
	// Zero disables the breaker.
	BreakerFailures uint32
	BreakerOpenFor  time.Duration
}

// AutomationConfig controls discovery, batching and the monitoring loop.
type AutomationConfig struct {
	BatchSize           int
	DelayBetweenBatches time.Duration
	DelayBetweenRecords time.Duration
	MaxRecordsPerCycle  int
	ContinuousMode      bool
	PollInterval        time.Duration
	// DedupStore selects the processed-set backend: "memory", "redis" or "none".
	DedupStore string
	// DedupTTL bounds how long a processed id is remembered by the redis store.
	DedupTTL time.Duration
}

type ErrorHandlingConfig struct {
	ContinueOnError bool
}

type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
	File   string // optional append-only file in addition to stdout
}

// RedisConfig is shared by the dedup store and the registry API cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables publishing enrichment events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

type ServerConfig struct {
	Addr string
}

// RegistryAPIConfig configures the lookup service in cmd/registry-api.
type RegistryAPIConfig struct {
	Addr     string
	Database DatabaseConfig
	CacheTTL time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DSN renders a lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s connect_timeout=%d",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode, int(d.ConnectTimeout.Seconds()))
}

// DefaultConfig mirrors the production settings of the automation.
func DefaultConfig() Config {
	return Config{
		Bitrix: BitrixConfig{
			APIURL:               "",
			Timeout:              30 * time.Second,
			HealthTimeout:        5 * time.Second,
			TargetPipeline:       17,
			TargetStages:         []string{"C17:NEW"},
			Fields:               enrichment.DefaultFieldKeys(),
			TaxpayerField:        "UF_CRM_1745494235",
			CompanyTaxpayerField: "UF_CRM_68613360",
		},
		Registry: RegistryConfig{
			BaseURL:         "http://localhost:3000",
			Timeout:         30 * time.Second,
			HealthTimeout:   5 * time.Second,
			MaxRetries:      3,
			RetryBackoff:    time.Second,
			UserAgent:       "PGFN-Automation/1.0",
			BreakerFailures: 5,
			BreakerOpenFor:  30 * time.Second,
		},
		Automation: AutomationConfig{
			BatchSize:           10,
			DelayBetweenBatches: 2 * time.Second,
			DelayBetweenRecords: 500 * time.Millisecond,
			MaxRecordsPerCycle:  100,
			ContinuousMode:      false,
			PollInterval:        10 * time.Second,
			DedupStore:          "memory",
			DedupTTL:            7 * 24 * time.Hour,
		},
		ErrorHandling: ErrorHandlingConfig{
			ContinueOnError: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic:    "pgfn.enrichment.events",
			ClientID: "pgfn-automation",
		},
		Monitor: ServerConfig{
			Addr: ":3001",
		},
		RegistryAPI: RegistryAPIConfig{
			Addr: ":3000",
			Database: DatabaseConfig{
				Host:            "localhost",
				Port:            5432,
				Name:            "bitrix",
				SSLMode:         "disable",
				MaxOpenConns:    20,
				ConnMaxIdleTime: 30 * time.Second,
				ConnectTimeout:  2 * time.Second,
			},
			CacheTTL: 5 * time.Minute,
		},
	}
}

// FromEnv overlays environment variables on DefaultConfig and validates the result.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	e := envReader{lookup: lookup}

	cfg.Bitrix.APIURL = strings.TrimRight(e.str("BITRIX_API_URL", cfg.Bitrix.APIURL), "/")
	cfg.Bitrix.Timeout = e.duration("BITRIX_TIMEOUT", cfg.Bitrix.Timeout)
	cfg.Bitrix.TargetPipeline = e.int("PGFN_TARGET_PIPELINE", cfg.Bitrix.TargetPipeline)
	cfg.Bitrix.TargetStages = e.list("PGFN_TARGET_STAGES", cfg.Bitrix.TargetStages)
	cfg.Bitrix.TaxpayerField = e.str("BITRIX_DEAL_CNPJ_FIELD", cfg.Bitrix.TaxpayerField)
	cfg.Bitrix.CompanyTaxpayerField = e.str("BITRIX_COMPANY_CNPJ_FIELD", cfg.Bitrix.CompanyTaxpayerField)
	cfg.Bitrix.Fields = e.fields(cfg.Bitrix.Fields)

	cfg.Registry.BaseURL = strings.TrimRight(e.str("PGFN_API_URL", cfg.Registry.BaseURL), "/")
	cfg.Registry.Timeout = e.duration("PGFN_API_TIMEOUT", cfg.Registry.Timeout)
	cfg.Registry.MaxRetries = e.int("PGFN_API_MAX_RETRIES", cfg.Registry.MaxRetries)
	cfg.Registry.RetryBackoff = e.duration("PGFN_API_RETRY_BACKOFF", cfg.Registry.RetryBackoff)
	cfg.Registry.BreakerFailures = uint32(e.int("PGFN_API_BREAKER_FAILURES", int(cfg.Registry.BreakerFailures)))
	cfg.Registry.BreakerOpenFor = e.duration("PGFN_API_BREAKER_OPEN_FOR", cfg.Registry.BreakerOpenFor)

	cfg.Automation.BatchSize = e.int("PGFN_BATCH_SIZE", cfg.Automation.BatchSize)
	cfg.Automation.DelayBetweenBatches = e.duration("PGFN_DELAY_BETWEEN_BATCHES", cfg.Automation.DelayBetweenBatches)
	cfg.Automation.DelayBetweenRecords = e.duration("PGFN_DELAY_BETWEEN_RECORDS", cfg.Automation.DelayBetweenRecords)
	cfg.Automation.MaxRecordsPerCycle = e.int("PGFN_MAX_RECORDS", cfg.Automation.MaxRecordsPerCycle)
	cfg.Automation.ContinuousMode = e.bool("PGFN_CONTINUOUS_MODE", cfg.Automation.ContinuousMode)
	cfg.Automation.PollInterval = time.Duration(e.int("PGFN_INTERVAL_SECONDS", int(cfg.Automation.PollInterval/time.Second))) * time.Second
	cfg.Automation.DedupStore = e.str("PGFN_DEDUP_STORE", cfg.Automation.DedupStore)
	cfg.Automation.DedupTTL = e.duration("PGFN_DEDUP_TTL", cfg.Automation.DedupTTL)

	cfg.ErrorHandling.ContinueOnError = e.bool("PGFN_CONTINUE_ON_ERROR", cfg.ErrorHandling.ContinueOnError)

	cfg.Logging.Level = e.str("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = e.str("LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.File = e.str("LOG_FILE", cfg.Logging.File)

	cfg.Redis.URL = e.str("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.PoolSize = e.int("REDIS_POOL_SIZE", cfg.Redis.PoolSize)

	cfg.Kafka.Brokers = e.list("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.Topic = e.str("KAFKA_TOPIC", cfg.Kafka.Topic)

	cfg.Monitor.Addr = e.str("MONITOR_ADDR", cfg.Monitor.Addr)
	if port, ok := lookup("PORT"); ok && port != "" {
		cfg.Monitor.Addr = ":" + port
	}

	cfg.RegistryAPI.Addr = e.str("REGISTRY_API_ADDR", cfg.RegistryAPI.Addr)
	cfg.RegistryAPI.CacheTTL = e.duration("REGISTRY_CACHE_TTL", cfg.RegistryAPI.CacheTTL)
	db := &cfg.RegistryAPI.Database
	db.Host = e.str("DB_HOST", db.Host)
	db.Port = e.int("DB_PORT", db.Port)
	db.Name = e.str("DB_NAME", db.Name)
	db.User = e.str("DB_USER", db.User)
	db.Password = e.str("DB_PASSWORD", db.Password)
	db.SSLMode = e.str("DB_SSLMODE", db.SSLMode)

	if e.err != nil {
		return Config{}, e.err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Bitrix.TargetPipeline <= 0 {
		errs = append(errs, errors.New("target pipeline must be positive"))
	}
	if len(c.Bitrix.TargetStages) == 0 {
		errs = append(errs, errors.New("at least one target stage is required"))
	}
	if c.Automation.BatchSize <= 0 {
		errs = append(errs, errors.New("batch size must be positive"))
	}
	if c.Automation.MaxRecordsPerCycle <= 0 {
		errs = append(errs, errors.New("max records per cycle must be positive"))
	}
	if c.Automation.DelayBetweenBatches < 0 || c.Automation.DelayBetweenRecords < 0 {
		errs = append(errs, errors.New("delays cannot be negative"))
	}
	if c.Automation.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.Registry.MaxRetries <= 0 {
		errs = append(errs, errors.New("registry max retries must be positive"))
	}
	switch c.Automation.DedupStore {
	case "memory", "none":
	case "redis":
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis dedup store requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown dedup store %q", c.Automation.DedupStore))
	}
	for _, key := range c.Bitrix.Fields.Required() {
		if key == "" {
			errs = append(errs, errors.New("all nine enrichment field keys must be set"))
			break
		}
	}
	return errors.Join(errs...)
}

// envReader collects the first parse error so FromEnv can report it once.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) raw(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return def
}

func (e *envReader) int(key string, def int) int {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return n
}

func (e *envReader) bool(key string, def bool) bool {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return b
}

// duration accepts Go duration strings ("2s") or bare integers as milliseconds.
func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return d
}

func (e *envReader) list(key string, def []string) []string {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	return pstrings.SplitList(v)
}

func (e *envReader) fields(def enrichment.FieldKeys) enrichment.FieldKeys {
	def.TotalActiveDebt = e.str("PGFN_FIELD_TOTAL_DIVIDA_ATIVA", def.TotalActiveDebt)
	def.ActiveExecution = e.str("PGFN_FIELD_EXECUCAO_FISCAL_ATIVA", def.ActiveExecution)
	def.PartnerLiability = e.str("PGFN_FIELD_CPF_SOCIO_RESPONDE", def.PartnerLiability)
	def.ContestTransaction = e.str("PGFN_FIELD_TRANSACAO_IMPUGNACAO", def.ContestTransaction)
	def.InstallmentsLast5Y = e.str("PGFN_FIELD_PARCELAMENTOS_5_ANOS", def.InstallmentsLast5Y)
	def.ActiveInstallments = e.str("PGFN_FIELD_PARCELAMENTOS_ATIVOS", def.ActiveInstallments)
	def.TotalInstallment = e.str("PGFN_FIELD_TOTAL_PARCELADO", def.TotalInstallment)
	def.TotalOutstanding = e.str("PGFN_FIELD_TOTAL_SALDO_DEVEDOR", def.TotalOutstanding)
	def.BenefitTransaction = e.str("PGFN_FIELD_TRANSACAO_BENEFICIO", def.BenefitTransaction)
	def.EntityName = e.str("PGFN_FIELD_NOME_EMPRESA", def.EntityName)
	return def
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}
