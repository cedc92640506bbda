package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config содержит все настройки сервиса
type Config struct {
	AppName  string
	Version  string
	LogLevel string
	ENV      string

	Server struct {
		Host            string
		Port            int
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	Postgres struct {
		Host     string
		Port     int
		User     string
		Password string
		DBName   string
		SSLMode  string
		Timeout  time.Duration
		PoolSize int // размер пула соединений
	}

	Redis struct {
		Host            string
		Port            int
		Password        string
		DB              int
		PoolSize        int           // размер пула соединений
		MinIdleConns    int           // минимальное количество неактивных соединений
		ConnectTimeout  time.Duration // таймаут соединения
		ReadTimeout     time.Duration // таймаут чтения
		WriteTimeout    time.Duration // таймаут записи
		PoolTimeout     time.Duration // таймаут ожидания соединения из пула
		IdleTimeout     time.Duration // таймаут неактивного соединения
		MaxRetries      int           // максимальное количество повторных попыток
		MinRetryBackoff time.Duration // минимальное время между повторными попытками
		MaxRetryBackoff time.Duration // максимальное время между повторными попытками
	}

	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		GroupID string   `mapstructure:"group_id"`
	}

	// Source - клиент коммерческой платформы-источника
	Source struct {
		Timeout    time.Duration // таймаут одного HTTP-запроса
		RatePerSec float64       // потолок исходящих запросов в секунду
		MaxRetries int           // максимальное число попыток
		RetryBase  time.Duration // базовый интервал экспоненциального бэкоффа
		PageSize   int           // размер страницы листинга SKU
	}

	// CatalogAPI - клиент платформы каталогов
	CatalogAPI struct {
		BaseURL     string
		AccessToken string
		Timeout     time.Duration
		RatePerSec  float64
		MaxRetries  int
		RetryBase   time.Duration
	}

	// Sync - параметры оркестратора синхронизации
	Sync struct {
		Workers     int           // размер пула обработчиков конвейера
		BatchSize   int           // размер партии выборки из очереди
		ChunkSize   int           // размер пакета инкрементальной выгрузки
		FeedTimeout time.Duration // предел ожидания обработки фида
	}

	Metrics struct {
		Enabled  bool
		Endpoint string
		Port     int // порт HTTP сервера метрик воркера
	}

	Security struct {
		JWTPrivateKeyPath string
		JWTPublicKeyPath  string
		JWTExpiration     time.Duration
		JWTIssuer         string
		CORSAllowOrigins  []string
	}
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	configFile := "config"
	if configPath != "" {
		configFile = configPath
	}

	var cfg Config

	// Настройка Viper
	viper.SetConfigName(configFile)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("../config")
	viper.AddConfigPath("../../config")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Чтение конфигурационного файла
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
		// Продолжаем, если файл не найден, будем использовать только переменные окружения
	}

	// Установка значений по умолчанию
	setDefaults()

	// Привязка переменных окружения
	bindEnvVariables()

	// Чтение конфигурации в структуру
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка десериализации конфигурации: %w", err)
	}

	// Получаем окружение
	cfg.ENV = viper.GetString("env")
	if cfg.ENV == "" {
		cfg.ENV = "development"
		if envVar := os.Getenv("APP_ENV"); envVar != "" {
			cfg.ENV = envVar
		}
	}

	return &cfg, nil
}

// setDefaults устанавливает значения по умолчанию
func setDefaults() {
	// Основные настройки
	viper.SetDefault("appName", "catalog-sync")
	viper.SetDefault("version", "1.0.0")
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("env", "development")

	// Настройки сервера
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", "10s")
	viper.SetDefault("server.writeTimeout", "10s")
	viper.SetDefault("server.shutdownTimeout", "5s")

	// Настройки Postgres
	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", 5432)
	viper.SetDefault("postgres.user", "postgres")
	viper.SetDefault("postgres.password", "postgres")
	viper.SetDefault("postgres.dbname", "catalog")
	viper.SetDefault("postgres.sslmode", "disable")
	viper.SetDefault("postgres.timeout", "5s")
	viper.SetDefault("postgres.poolSize", 10)

	// Настройки Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.poolSize", 10)
	viper.SetDefault("redis.minIdleConns", 2)
	viper.SetDefault("redis.connectTimeout", "1s")
	viper.SetDefault("redis.readTimeout", "1s")
	viper.SetDefault("redis.writeTimeout", "1s")
	viper.SetDefault("redis.poolTimeout", "4s")
	viper.SetDefault("redis.idleTimeout", "300s")
	viper.SetDefault("redis.maxRetries", 3)
	viper.SetDefault("redis.minRetryBackoff", "8ms")
	viper.SetDefault("redis.maxRetryBackoff", "512ms")

	// Настройки Kafka
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.group_id", "catalog-sync")

	// Настройки клиента источника
	viper.SetDefault("source.timeout", "30s")
	viper.SetDefault("source.ratePerSec", 50)
	viper.SetDefault("source.maxRetries", 8)
	viper.SetDefault("source.retryBase", "1s")
	viper.SetDefault("source.pageSize", 1000)

	// Настройки платформы каталогов
	viper.SetDefault("catalogapi.baseURL", "https://graph.facebook.com/v21.0")
	viper.SetDefault("catalogapi.accessToken", "")
	viper.SetDefault("catalogapi.timeout", "60s")
	viper.SetDefault("catalogapi.ratePerSec", 20)
	viper.SetDefault("catalogapi.maxRetries", 8)
	viper.SetDefault("catalogapi.retryBase", "1s")

	// Настройки синхронизации
	viper.SetDefault("sync.workers", 100)
	viper.SetDefault("sync.batchSize", 500)
	viper.SetDefault("sync.chunkSize", 5000)
	viper.SetDefault("sync.feedTimeout", "15m")

	// Настройки метрик
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.endpoint", "/metrics")
	viper.SetDefault("metrics.port", 9090)

	// Настройки безопасности
	viper.SetDefault("security.jwtPrivateKeyPath", "")
	viper.SetDefault("security.jwtPublicKeyPath", "")
	viper.SetDefault("security.jwtExpiration", "60m")
	viper.SetDefault("security.jwtIssuer", "catalog-sync")
	viper.SetDefault("security.corsAllowOrigins", []string{"*"})
}

// bindEnvVariables привязывает переменные окружения к конфигурации
func bindEnvVariables() {
	// Основные настройки
	viper.BindEnv("appName", "APP_NAME")
	viper.BindEnv("version", "APP_VERSION")
	viper.BindEnv("logLevel", "LOG_LEVEL")
	viper.BindEnv("env", "APP_ENV")

	// Настройки сервера
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.readTimeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.writeTimeout", "SERVER_WRITE_TIMEOUT")
	viper.BindEnv("server.shutdownTimeout", "SERVER_SHUTDOWN_TIMEOUT")

	// Настройки Postgres
	viper.BindEnv("postgres.host", "POSTGRES_HOST")
	viper.BindEnv("postgres.port", "POSTGRES_PORT")
	viper.BindEnv("postgres.user", "POSTGRES_USER")
	viper.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	viper.BindEnv("postgres.dbname", "POSTGRES_DBNAME")
	viper.BindEnv("postgres.sslmode", "POSTGRES_SSLMODE")
	viper.BindEnv("postgres.timeout", "POSTGRES_TIMEOUT")
	viper.BindEnv("postgres.poolSize", "POSTGRES_POOL_SIZE")

	// Настройки Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("redis.poolSize", "REDIS_POOL_SIZE")
	viper.BindEnv("redis.minIdleConns", "REDIS_MIN_IDLE_CONNS")
	viper.BindEnv("redis.connectTimeout", "REDIS_CONNECT_TIMEOUT")
	viper.BindEnv("redis.readTimeout", "REDIS_READ_TIMEOUT")
	viper.BindEnv("redis.writeTimeout", "REDIS_WRITE_TIMEOUT")
	viper.BindEnv("redis.poolTimeout", "REDIS_POOL_TIMEOUT")
	viper.BindEnv("redis.idleTimeout", "REDIS_IDLE_TIMEOUT")
	viper.BindEnv("redis.maxRetries", "REDIS_MAX_RETRIES")
	viper.BindEnv("redis.minRetryBackoff", "REDIS_MIN_RETRY_BACKOFF")
	viper.BindEnv("redis.maxRetryBackoff", "REDIS_MAX_RETRY_BACKOFF")

	// Настройки Kafka
	viper.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	viper.BindEnv("kafka.group_id", "KAFKA_GROUP_ID")

	// Настройки клиента источника
	viper.BindEnv("source.timeout", "SOURCE_TIMEOUT")
	viper.BindEnv("source.ratePerSec", "SOURCE_RATE_PER_SEC")
	viper.BindEnv("source.maxRetries", "SOURCE_MAX_RETRIES")
	viper.BindEnv("source.retryBase", "SOURCE_RETRY_BASE")
	viper.BindEnv("source.pageSize", "SOURCE_PAGE_SIZE")

	// Настройки платформы каталогов
	viper.BindEnv("catalogapi.baseURL", "CATALOG_API_BASE_URL")
	viper.BindEnv("catalogapi.accessToken", "CATALOG_API_ACCESS_TOKEN")
	viper.BindEnv("catalogapi.timeout", "CATALOG_API_TIMEOUT")
	viper.BindEnv("catalogapi.ratePerSec", "CATALOG_API_RATE_PER_SEC")
	viper.BindEnv("catalogapi.maxRetries", "CATALOG_API_MAX_RETRIES")
	viper.BindEnv("catalogapi.retryBase", "CATALOG_API_RETRY_BASE")

	// Настройки синхронизации
	viper.BindEnv("sync.workers", "SYNC_WORKERS")
	viper.BindEnv("sync.batchSize", "SYNC_BATCH_SIZE")
	viper.BindEnv("sync.chunkSize", "SYNC_CHUNK_SIZE")
	viper.BindEnv("sync.feedTimeout", "SYNC_FEED_TIMEOUT")

	// Настройки метрик
	viper.BindEnv("metrics.enabled", "METRICS_ENABLED")
	viper.BindEnv("metrics.endpoint", "METRICS_ENDPOINT")
	viper.BindEnv("metrics.port", "METRICS_PORT")

	// Настройки безопасности
	viper.BindEnv("security.jwtPrivateKeyPath", "JWT_PRIVATE_KEY_PATH")
	viper.BindEnv("security.jwtPublicKeyPath", "JWT_PUBLIC_KEY_PATH")
	viper.BindEnv("security.jwtExpiration", "JWT_EXPIRATION")
	viper.BindEnv("security.jwtIssuer", "JWT_ISSUER")
	viper.BindEnv("security.corsAllowOrigins", "CORS_ALLOW_ORIGINS")
}
