package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"cardassist/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", 15)
	viper.SetDefault("server.write_timeout_seconds", 15)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("broker.type", constants.BrokerTypeRabbitMQ)
	viper.SetDefault("broker.rabbitmq.vhost", "/")
	viper.SetDefault("broker.rabbitmq.exchange", constants.DefaultExchange)
	viper.SetDefault("broker.rabbitmq.knowledge_queue", constants.DefaultKnowledgeQueue)
	viper.SetDefault("broker.rabbitmq.action_queue", constants.DefaultActionQueue)
	viper.SetDefault("broker.rabbitmq.generative_queue", constants.DefaultGenerativeQueue)
	viper.SetDefault("broker.rabbitmq.dead_letter_queue", constants.DefaultDeadLetterQueue)
	viper.SetDefault("broker.rabbitmq.prefetch", constants.DefaultPrefetch)
	viper.SetDefault("broker.rabbitmq.workers", constants.DefaultWorkers)
	viper.SetDefault("broker.rabbitmq.dial_attempts", constants.DefaultDialAttempts)
	viper.SetDefault("broker.rabbitmq.dial_delay", constants.DefaultDialDelay)
	viper.SetDefault("broker.kafka.knowledge_topic", constants.DefaultKnowledgeQueue)
	viper.SetDefault("broker.kafka.action_topic", constants.DefaultActionQueue)
	viper.SetDefault("broker.kafka.generative_topic", constants.DefaultGenerativeQueue)
	viper.SetDefault("broker.kafka.dlq_topic", constants.DefaultDeadLetterQueue)

	viper.SetDefault("classifier.timeout", constants.DefaultInferenceTimeout)
	viper.SetDefault("classifier.rule_confidence", constants.DefaultRuleConfidence)
	viper.SetDefault("classifier.min_confidence", constants.DefaultMinLLMConfidence)

	viper.SetDefault("inference.model", constants.DefaultOpenAIModel)
	viper.SetDefault("inference.generate_timeout", constants.DefaultInferenceTimeout)
	viper.SetDefault("inference.classify_max_tokens", constants.DefaultClassifyMaxTokens)
	viper.SetDefault("inference.generate_max_tokens", constants.DefaultGenerateMaxTokens)

	viper.SetDefault("routing.bill_query_target", constants.BillTargetAction)

	viper.SetDefault("consumer.retry_ceiling", constants.DefaultRetryCeiling)
	viper.SetDefault("consumer.initial_interval", constants.DefaultRetryInitialInterval)
	viper.SetDefault("consumer.max_interval", constants.DefaultRetryMaxInterval)
	viper.SetDefault("consumer.multiplier", constants.DefaultRetryMultiplier)
	viper.SetDefault("consumer.dispatch_timeout", constants.DefaultDispatchTimeout)

	viper.SetDefault("idempotency.store", constants.StoreRedis)
	viper.SetDefault("idempotency.ttl", constants.DefaultIdempotencyTTL)
	viper.SetDefault("idempotency.claim_ttl", constants.DefaultClaimTTL)
	viper.SetDefault("idempotency.claim_poll_interval", constants.DefaultClaimPollInterval)
	viper.SetDefault("idempotency.on_store_error", constants.FallbackAllow)

	viper.SetDefault("knowledge.source", constants.KnowledgeSourceEmbedded)
	viper.SetDefault("knowledge.collection", constants.DefaultKnowledgeCollection)

	viper.SetDefault("auth.issuer", constants.DefaultTokenIssuer)
	viper.SetDefault("auth.token_ttl", constants.DefaultTokenTTL)

	viper.SetDefault("ingress.reply_timeout", constants.DefaultReplyTimeout)
	viper.SetDefault("ingress.poll_interval", constants.DefaultPollInterval)

	viper.SetDefault("sink.store", constants.StoreRedis)
	viper.SetDefault("sink.response_ttl", constants.DefaultResponseTTL)
}

func bindEnvVariables() {
	viper.BindEnv("broker.type", "BROKER_TYPE")

	viper.BindEnv("broker.rabbitmq.host", "BROKER_RABBITMQ_HOST")
	viper.BindEnv("broker.rabbitmq.port", "BROKER_RABBITMQ_PORT")
	viper.BindEnv("broker.rabbitmq.user", "BROKER_RABBITMQ_USER")
	viper.BindEnv("broker.rabbitmq.password", "BROKER_RABBITMQ_PASSWORD")
	viper.BindEnv("broker.rabbitmq.vhost", "BROKER_RABBITMQ_VHOST")

	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.dlq_topic", "BROKER_KAFKA_DLQ_TOPIC")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("inference.provider", "INFERENCE_PROVIDER")
	viper.BindEnv("inference.api_key", "OPENAI_API_KEY", "INFERENCE_API_KEY")
	viper.BindEnv("inference.base_url", "INFERENCE_BASE_URL")
	viper.BindEnv("inference.model", "INFERENCE_MODEL")

	viper.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}
