package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	Classifier     ClassifierConfig
	Inference      InferenceConfig
	Routing        RoutingConfig
	Consumer       ConsumerConfig
	Idempotency    IdempotencyConfig
	Knowledge      KnowledgeConfig
	Auth           AuthConfig
	Ingress        IngressConfig
	Sink           SinkConfig
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig
	Redis         RedisConfig
	MongoDB       MongoDBConfig
	RunMigrations bool `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Type     string         `mapstructure:"type"` // "rabbitmq", "kafka", "memory"
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

type RabbitMQConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	VHost           string        `mapstructure:"vhost"`
	Exchange        string        `mapstructure:"exchange"`
	KnowledgeQueue  string        `mapstructure:"knowledge_queue"`
	ActionQueue     string        `mapstructure:"action_queue"`
	GenerativeQueue string        `mapstructure:"generative_queue"`
	DeadLetterQueue string        `mapstructure:"dead_letter_queue"`
	Prefetch        int           `mapstructure:"prefetch"`
	Workers         int           `mapstructure:"workers"`
	DialAttempts    int           `mapstructure:"dial_attempts"`
	DialDelay       time.Duration `mapstructure:"dial_delay"`
}

type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	GroupID         string   `mapstructure:"group_id"`
	KnowledgeTopic  string   `mapstructure:"knowledge_topic"`
	ActionTopic     string   `mapstructure:"action_topic"`
	GenerativeTopic string   `mapstructure:"generative_topic"`
	DLQTopic        string   `mapstructure:"dlq_topic"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ClassifierConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	RuleConfidence float64       `mapstructure:"rule_confidence"`
	MinConfidence  float64       `mapstructure:"min_confidence"`
}

type InferenceConfig struct {
	Provider          string        `mapstructure:"provider"` // "openai" or "" (rules only)
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	GenerateTimeout   time.Duration `mapstructure:"generate_timeout"`
	ClassifyMaxTokens int           `mapstructure:"classify_max_tokens"`
	GenerateMaxTokens int           `mapstructure:"generate_max_tokens"`
}

type RoutingConfig struct {
	BillQueryTarget string `mapstructure:"bill_query_target"` // "action_api" or "knowledge_base"
}

type ConsumerConfig struct {
	RetryCeiling    int           `mapstructure:"retry_ceiling"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
	Reclassify      bool          `mapstructure:"reclassify"`
	// GenerateOnNoMatch asks the generator when the knowledge index has no
	// answer. Off, the fixed no-match reply is sent.
	GenerateOnNoMatch bool `mapstructure:"generate_on_no_match"`
}

type IdempotencyConfig struct {
	Store        string        `mapstructure:"store"` // "redis" or "memory"
	TTL          time.Duration `mapstructure:"ttl"`
	ClaimTTL     time.Duration `mapstructure:"claim_ttl"`
	ClaimPoll    time.Duration `mapstructure:"claim_poll_interval"`
	OnStoreError string        `mapstructure:"on_store_error"` // "allow" or "deny"
}

type KnowledgeConfig struct {
	Source     string `mapstructure:"source"` // "embedded" or "mongodb"
	Collection string `mapstructure:"collection"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type IngressConfig struct {
	ReplyTimeout time.Duration `mapstructure:"reply_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type SinkConfig struct {
	Store       string            `mapstructure:"store"` // "redis" or "memory"
	ResponseTTL time.Duration     `mapstructure:"response_ttl"`
	Webhooks    map[string]string `mapstructure:"webhooks"` // channel -> URL
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
