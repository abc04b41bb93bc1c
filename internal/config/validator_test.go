package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardassist/internal/constants"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, ReadTimeoutSeconds: 15, WriteTimeoutSeconds: 15},
		Broker: BrokerConfig{Type: constants.BrokerTypeMemory},
		Classifier: ClassifierConfig{
			Timeout:        time.Second,
			RuleConfidence: 0.6,
			MinConfidence:  0.5,
		},
		Routing: RoutingConfig{BillQueryTarget: constants.BillTargetAction},
		Consumer: ConsumerConfig{
			RetryCeiling:    3,
			InitialInterval: time.Millisecond,
			MaxInterval:     10 * time.Millisecond,
			Multiplier:      2,
			DispatchTimeout: time.Second,
		},
		Idempotency: IdempotencyConfig{
			Store:        constants.StoreMemory,
			TTL:          time.Hour,
			ClaimTTL:     time.Second,
			OnStoreError: constants.FallbackAllow,
		},
		Knowledge: KnowledgeConfig{Source: constants.KnowledgeSourceEmbedded},
		Auth:      AuthConfig{JWTSecret: "0123456789abcdef", TokenTTL: time.Hour},
		Ingress:   IngressConfig{ReplyTimeout: time.Second, PollInterval: time.Millisecond},
		Sink:      SinkConfig{Store: constants.StoreMemory, ResponseTTL: time.Hour},
	}
}

func TestValidateStatic_Valid(t *testing.T) {
	require.NoError(t, ValidateStatic(validConfig()))
}

func TestValidateStatic_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"unknown broker", func(c *Config) { c.Broker.Type = "nats" }, "broker.type"},
		{"rabbitmq without host", func(c *Config) { c.Broker.Type = constants.BrokerTypeRabbitMQ }, "broker.rabbitmq.host"},
		{"kafka without brokers", func(c *Config) { c.Broker.Type = constants.BrokerTypeKafka }, "broker.kafka.brokers"},
		{"zero ceiling", func(c *Config) { c.Consumer.RetryCeiling = 0 }, "consumer.retry_ceiling"},
		{"zero dispatch timeout", func(c *Config) { c.Consumer.DispatchTimeout = 0 }, "consumer.dispatch_timeout"},
		{"bad bill target", func(c *Config) { c.Routing.BillQueryTarget = "nowhere" }, "routing.bill_query_target"},
		{"min confidence out of range", func(c *Config) { c.Classifier.MinConfidence = 2 }, "classifier.min_confidence"},
		{"unknown inference provider", func(c *Config) { c.Inference.Provider = "llama" }, "inference.provider"},
		{"openai without key", func(c *Config) {
			c.Inference = InferenceConfig{Provider: "openai", Model: "m", GenerateTimeout: time.Second}
		}, "inference.api_key"},
		{"redis store without redis", func(c *Config) { c.Idempotency.Store = constants.StoreRedis }, "idempotency.store"},
		{"bad fallback", func(c *Config) { c.Idempotency.OnStoreError = "maybe" }, "idempotency.on_store_error"},
		{"mongodb knowledge without uri", func(c *Config) { c.Knowledge.Source = constants.KnowledgeSourceMongoDB }, "knowledge.source"},
		{"short jwt secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "auth.jwt_secret"},
		{"bad webhook", func(c *Config) { c.Sink.Webhooks = map[string]string{"sms": "ftp://x"} }, "sink.webhooks.sms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateStatic(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}
