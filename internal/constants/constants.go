package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	DatabaseConnectTimeout  = 10 * time.Second
	PostgresMaxOpenConns    = 10
	PostgresMaxIdleConns    = 5
	PostgresConnMaxLifetime = 30 * time.Minute
	RedisDialTimeout        = 5 * time.Second
	RedisReadTimeout        = 3 * time.Second
	RedisPoolSize           = 20
)

const (
	CacheKeyPrefixIdempotency = "idem:"
	CacheKeySuffixClaim       = ":claim"
	CacheKeyPrefixResponse    = "response:"
)

const (
	ServiceNameRouter   = "router-service"
	ServiceNameConsumer = "consumer-service"
	ServiceNameAdmin    = "admin-service"
)

// RabbitMQ topology. The exchange and queue names match the deployed broker.
const (
	DefaultExchange        = "credit_card_exchange"
	DefaultKnowledgeQueue  = "knowledge_base_queue"
	DefaultActionQueue     = "action_api_queue"
	DefaultGenerativeQueue = "generative_fallback_queue"
	DefaultDeadLetterQueue = "dead_letter_queue"
	DefaultPrefetch        = 1
	DefaultWorkers         = 1
	DefaultDialAttempts    = 5
	DefaultDialDelay       = 2 * time.Second
)

const (
	RoutingKeyKnowledge  = "knowledge"
	RoutingKeyAction     = "action"
	RoutingKeyGenerative = "generative"
	RoutingKeyDeadLetter = "dead_letter"
)

const (
	DefaultRetryCeiling         = 3
	DefaultRetryInitialInterval = 200 * time.Millisecond
	DefaultRetryMaxInterval     = 2 * time.Second
	DefaultRetryMultiplier      = 2.0
	DefaultInferenceTimeout     = 5 * time.Second
	DefaultDispatchTimeout      = 5 * time.Second
	DefaultRuleConfidence       = 0.6
	DefaultMinLLMConfidence     = 0.5
	DefaultReplyTimeout         = 10 * time.Second
	DefaultPollInterval         = 100 * time.Millisecond
	DefaultTokenIssuer          = "cardassist"
	DefaultIdempotencyTTL       = 24 * time.Hour
	DefaultClaimTTL             = 30 * time.Second
	DefaultClaimPollInterval    = 250 * time.Millisecond
	DefaultResponseTTL          = time.Hour
	DefaultTokenTTL             = 24 * time.Hour
	DefaultEMITenureMonths      = 6
	DefaultTransactionID        = "TXN123456"
	DefaultOpenAIModel          = "gpt-4o-mini"
	DefaultClassifyMaxTokens    = 120
	DefaultGenerateMaxTokens    = 300
	DefaultKnowledgeCollection  = "knowledge_entries"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit       = 50
	MaxLimit           = 500
	DefaultTruncateLen = 100
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
)

const (
	BillTargetAction    = "action_api"
	BillTargetKnowledge = "knowledge_base"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

const (
	InferenceProviderOpenAI = "openai"
	InferenceProviderNone   = ""
)

const (
	BrokerTypeRabbitMQ = "rabbitmq"
	BrokerTypeKafka    = "kafka"
	BrokerTypeMemory   = "memory"
)

const (
	KnowledgeSourceEmbedded = "embedded"
	KnowledgeSourceMongoDB  = "mongodb"
)

// User-facing texts.
const (
	GreetingReply       = "Hello! I'm your credit card assistant. I can help with card delivery, blocking a card, statements, EMI conversion, bills and payments. How can I help you today?"
	NoMatchReply        = "I'm sorry, I couldn't find information about that. Please rephrase your question or contact customer support."
	GenericFallback     = "I'm not sure I understood that. You can ask me about your card, bills, payments, EMI or card delivery."
	ApologyReply        = "Sorry, I encountered an error processing your request."
	RetryLaterReply     = "Our messaging service is temporarily unavailable. Please try again in a moment."
	AuthRequiredReply   = "You need to be authorized to perform this action. Please signup or login first."
	InvalidTokenReply   = "Invalid authentication token. Please login again."
	QueuedReply         = "Your request is being processed."
	MissingParamReplyFm = "I need a bit more information to do that: please provide your %s."
)
