package global

import (
	"os"
	"strconv"
	"strings"

	"RProject/logger"

	"github.com/joho/godotenv"
)

const NodeTypeChatGateway = "chatGateway"

// AppConfig is the process configuration, filled from the environment once
// at startup. No config center: this core is a single deployable behind
// the main application.
type AppConfig struct {
	NodeType string
	NodeID   string
	Port     int

	JWTSecret []byte

	MongoURI      string
	MongoDatabase string

	PostgresDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NatsURL string

	KafkaBrokers      []string
	KafkaGroupID      string
	KafkaFollowTopic  string
	KafkaAuditTopic   string
	KafkaAuditEnabled bool

	PushEndpoint string
	PushAPIKey   string
}

var Config AppConfig

// Load reads .env (if present) and the process environment.
func Load() {
	if err := godotenv.Load(); err != nil {
		logger.Infof("[config] no .env file, using process env only")
	}

	Config = AppConfig{
		NodeType: envStr("NODE_TYPE", NodeTypeChatGateway),
		NodeID:   envStr("NODE_ID", "gateway_1"),
		Port:     envInt("PORT", 8080),

		JWTSecret: []byte(envStr("JWT_SECRET", "")),

		MongoURI:      envStr("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: envStr("MONGO_DATABASE", "vibez_chat"),

		PostgresDSN: envStr("POSTGRES_DSN", "postgres://localhost:5432/vibez"),

		RedisAddr:     envStr("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: envStr("REDIS_PASSWORD", ""),
		RedisDB:       envInt("REDIS_DB", 0),

		NatsURL: envStr("NATS_URL", "nats://127.0.0.1:4222"),

		KafkaBrokers:      envList("KAFKA_BROKERS", "localhost:9092"),
		KafkaGroupID:      envStr("KAFKA_GROUP_ID", "chat-core-consumer-1"),
		KafkaFollowTopic:  envStr("KAFKA_FOLLOW_TOPIC", "social_follow_events"),
		KafkaAuditTopic:   envStr("KAFKA_AUDIT_TOPIC", "notification_created"),
		KafkaAuditEnabled: envBool("KAFKA_AUDIT_ENABLED", true),

		PushEndpoint: envStr("PUSH_ENDPOINT", "https://push.example.com/v1/send"),
		PushAPIKey:   envStr("PUSH_API_KEY", ""),
	}

	if len(Config.JWTSecret) == 0 {
		logger.Warnf("[config] JWT_SECRET is empty, all bearer tokens will be rejected")
	}
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warnf("[config] %s=%q is not a number, using %d", key, v, def)
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envList(key, def string) []string {
	v := envStr(key, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
