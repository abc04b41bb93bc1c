package config

import (
	"fmt"
	"strings"

	"cardassist/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	validators := []func() error{
		func() error { return validateServer(cfg.Server) },
		func() error { return validateBroker(cfg.Broker) },
		func() error { return validateDatabase(cfg.Database) },
		func() error { return validateClassifier(cfg.Classifier) },
		func() error { return validateInference(cfg.Inference) },
		func() error { return validateRouting(cfg.Routing) },
		func() error { return validateConsumer(cfg.Consumer) },
		func() error { return validateIdempotency(cfg.Idempotency, cfg.Database) },
		func() error { return validateKnowledge(cfg.Knowledge, cfg.Database) },
		func() error { return validateAuth(cfg.Auth) },
		func() error { return validateIngress(cfg.Ingress) },
		func() error { return validateSink(cfg.Sink, cfg.Database) },
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	if cfg.Type == "" {
		return &ValidationError{
			Field:   "broker.type",
			Message: "broker type is required",
		}
	}

	switch cfg.Type {
	case constants.BrokerTypeKafka:
		return validateKafka(cfg.Kafka)
	case constants.BrokerTypeRabbitMQ:
		return validateRabbitMQ(cfg.RabbitMQ)
	case constants.BrokerTypeMemory:
		return nil
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: kafka, rabbitmq, memory)", cfg.Type),
		}
	}
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	topics := map[string]string{
		"broker.kafka.knowledge_topic":  cfg.KnowledgeTopic,
		"broker.kafka.action_topic":     cfg.ActionTopic,
		"broker.kafka.generative_topic": cfg.GenerativeTopic,
		"broker.kafka.dlq_topic":        cfg.DLQTopic,
	}
	for field, topic := range topics {
		if topic == "" {
			return &ValidationError{Field: field, Message: "topic name is required"}
		}
	}

	return nil
}

func validateRabbitMQ(cfg RabbitMQConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "broker.rabbitmq.host",
			Message: "RabbitMQ host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "broker.rabbitmq.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.Exchange == "" {
		return &ValidationError{
			Field:   "broker.rabbitmq.exchange",
			Message: "exchange name is required",
		}
	}

	if cfg.KnowledgeQueue == "" || cfg.ActionQueue == "" || cfg.GenerativeQueue == "" || cfg.DeadLetterQueue == "" {
		return &ValidationError{
			Field:   "broker.rabbitmq",
			Message: "knowledge, action, generative and dead letter queue names are required",
		}
	}

	if cfg.Prefetch < 1 {
		return &ValidationError{
			Field:   "broker.rabbitmq.prefetch",
			Message: "prefetch must be at least 1",
		}
	}

	if cfg.Workers < 1 {
		return &ValidationError{
			Field:   "broker.rabbitmq.workers",
			Message: "workers must be at least 1",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host != "" || cfg.Postgres.Port > 0 {
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	}

	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.MongoDB.URI != "" {
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if cfg.URI == "" {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI is required",
		}
	}

	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}

func validateClassifier(cfg ClassifierConfig) error {
	if cfg.Timeout <= 0 {
		return &ValidationError{
			Field:   "classifier.timeout",
			Message: "timeout must be positive",
		}
	}

	if cfg.RuleConfidence <= 0 || cfg.RuleConfidence > 1 {
		return &ValidationError{
			Field:   "classifier.rule_confidence",
			Message: fmt.Sprintf("rule confidence must be in (0, 1], got %v", cfg.RuleConfidence),
		}
	}

	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return &ValidationError{
			Field:   "classifier.min_confidence",
			Message: fmt.Sprintf("min confidence must be in [0, 1], got %v", cfg.MinConfidence),
		}
	}

	return nil
}

func validateInference(cfg InferenceConfig) error {
	switch strings.ToLower(cfg.Provider) {
	case constants.InferenceProviderNone:
		return nil
	case constants.InferenceProviderOpenAI:
	default:
		return &ValidationError{
			Field:   "inference.provider",
			Message: fmt.Sprintf("unknown inference provider: %s (supported: openai)", cfg.Provider),
		}
	}

	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return &ValidationError{
			Field:   "inference.api_key",
			Message: "api key is required unless a custom base_url is set",
		}
	}

	if cfg.Model == "" {
		return &ValidationError{
			Field:   "inference.model",
			Message: "model is required",
		}
	}

	if cfg.GenerateTimeout <= 0 {
		return &ValidationError{
			Field:   "inference.generate_timeout",
			Message: "generate timeout must be positive",
		}
	}

	return nil
}

func validateRouting(cfg RoutingConfig) error {
	switch cfg.BillQueryTarget {
	case constants.BillTargetAction, constants.BillTargetKnowledge:
		return nil
	default:
		return &ValidationError{
			Field:   "routing.bill_query_target",
			Message: fmt.Sprintf("invalid bill query target: %s (valid: action_api, knowledge_base)", cfg.BillQueryTarget),
		}
	}
}

func validateConsumer(cfg ConsumerConfig) error {
	if cfg.RetryCeiling < 1 {
		return &ValidationError{
			Field:   "consumer.retry_ceiling",
			Message: "retry ceiling must be at least 1",
		}
	}

	if cfg.InitialInterval < 0 {
		return &ValidationError{
			Field:   "consumer.initial_interval",
			Message: "initial_interval must be non-negative",
		}
	}

	if cfg.MaxInterval < 0 {
		return &ValidationError{
			Field:   "consumer.max_interval",
			Message: "max_interval must be non-negative",
		}
	}

	if cfg.MaxInterval > 0 && cfg.InitialInterval > 0 && cfg.MaxInterval < cfg.InitialInterval {
		return &ValidationError{
			Field:   "consumer.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Multiplier <= 0 {
		return &ValidationError{
			Field:   "consumer.multiplier",
			Message: "multiplier must be positive",
		}
	}

	if cfg.DispatchTimeout <= 0 {
		return &ValidationError{
			Field:   "consumer.dispatch_timeout",
			Message: "dispatch timeout must be positive",
		}
	}

	return nil
}

func validateStore(field, store string, db DatabaseConfig) error {
	switch store {
	case constants.StoreMemory:
		return nil
	case constants.StoreRedis:
		if db.Redis.Host == "" {
			return &ValidationError{
				Field:   field,
				Message: "redis store requires database.redis to be configured",
			}
		}
		return nil
	default:
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid store: %s (valid: redis, memory)", store),
		}
	}
}

func validateIdempotency(cfg IdempotencyConfig, db DatabaseConfig) error {
	if err := validateStore("idempotency.store", cfg.Store, db); err != nil {
		return err
	}

	if cfg.TTL <= 0 {
		return &ValidationError{
			Field:   "idempotency.ttl",
			Message: "TTL must be positive",
		}
	}

	if cfg.ClaimTTL <= 0 {
		return &ValidationError{
			Field:   "idempotency.claim_ttl",
			Message: "claim TTL must be positive",
		}
	}

	validOnError := map[string]bool{
		constants.FallbackAllow: true, constants.FallbackDeny: true,
	}
	if !validOnError[strings.ToLower(cfg.OnStoreError)] {
		return &ValidationError{
			Field:   "idempotency.on_store_error",
			Message: fmt.Sprintf("invalid on_store_error value: %s (valid: allow, deny)", cfg.OnStoreError),
		}
	}

	return nil
}

func validateKnowledge(cfg KnowledgeConfig, db DatabaseConfig) error {
	switch cfg.Source {
	case constants.KnowledgeSourceEmbedded:
		return nil
	case constants.KnowledgeSourceMongoDB:
		if db.MongoDB.URI == "" {
			return &ValidationError{
				Field:   "knowledge.source",
				Message: "mongodb source requires database.mongodb.uri",
			}
		}
		if cfg.Collection == "" {
			return &ValidationError{
				Field:   "knowledge.collection",
				Message: "collection is required",
			}
		}
		return nil
	default:
		return &ValidationError{
			Field:   "knowledge.source",
			Message: fmt.Sprintf("invalid knowledge source: %s (valid: embedded, mongodb)", cfg.Source),
		}
	}
}

func validateAuth(cfg AuthConfig) error {
	if len(cfg.JWTSecret) < 16 {
		return &ValidationError{
			Field:   "auth.jwt_secret",
			Message: "jwt secret must be at least 16 characters",
		}
	}

	if cfg.TokenTTL <= 0 {
		return &ValidationError{
			Field:   "auth.token_ttl",
			Message: "token TTL must be positive",
		}
	}

	return nil
}

func validateIngress(cfg IngressConfig) error {
	if cfg.ReplyTimeout < 0 {
		return &ValidationError{
			Field:   "ingress.reply_timeout",
			Message: "reply timeout must be non-negative",
		}
	}

	if cfg.PollInterval <= 0 {
		return &ValidationError{
			Field:   "ingress.poll_interval",
			Message: "poll interval must be positive",
		}
	}

	return nil
}

func validateSink(cfg SinkConfig, db DatabaseConfig) error {
	if err := validateStore("sink.store", cfg.Store, db); err != nil {
		return err
	}

	if cfg.ResponseTTL <= 0 {
		return &ValidationError{
			Field:   "sink.response_ttl",
			Message: "response TTL must be positive",
		}
	}

	for channel, url := range cfg.Webhooks {
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return &ValidationError{
				Field:   "sink.webhooks." + channel,
				Message: fmt.Sprintf("webhook URL must be http(s), got %q", url),
			}
		}
	}

	return nil
}
