// Package config defines the configuration for the CDC bridge and the bulk
// loader. Configuration is loaded once at process initialization and is
// immutable thereafter. Values come from the OS environment, with a .env file
// as a development fallback; every variable is optional with a default so the
// bridge starts with zero configuration in a co-located docker-compose
// deployment.
package config

import (
	"strings"
	"time"
)

// Config is the top-level configuration struct. Sub-components receive only
// the subsets they require.
type Config struct {
	Service  string `envconfig:"SERVICE_NAME" default:"cdc-bridge"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	Server ServerConfig
	Kafka  KafkaConfig
	Loader LoaderConfig
}

// ServerConfig holds the HTTP bind address and server timeouts.
type ServerConfig struct {
	Host string `envconfig:"CDC_BRIDGE_HOST" default:"0.0.0.0"`
	Port string `envconfig:"CDC_BRIDGE_PORT" default:"8000"`

	ReadHeaderTimeout time.Duration `envconfig:"HTTP_READ_HEADER_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout       time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout   time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

// KafkaConfig holds broker endpoints, topic names, and the retry/timeout
// budget for the publisher.
//
// ConnectAttempts and ConnectBackoff bound the fixed-interval startup retry:
// an unreachable broker at boot is fatal, not degraded-but-running.
// PublishTimeout is the hard per-send budget; combined with the server write
// timeout it guarantees every inbound request gets an answer even under full
// broker unavailability.
type KafkaConfig struct {
	BootstrapServers  string `envconfig:"KAFKA_BOOTSTRAP_SERVERS" default:"kafka:9092"`
	NodeTopic         string `envconfig:"KAFKA_TOPIC_NODES" default:"neo4j.nodes"`
	RelationshipTopic string `envconfig:"KAFKA_TOPIC_RELATIONSHIPS" default:"neo4j.relationships"`

	ConnectAttempts int           `envconfig:"KAFKA_CONNECT_ATTEMPTS" default:"5" validate:"min=1"`
	ConnectBackoff  time.Duration `envconfig:"KAFKA_CONNECT_BACKOFF" default:"5s"`
	MetadataTimeout time.Duration `envconfig:"KAFKA_METADATA_TIMEOUT" default:"10s"`
	PublishTimeout  time.Duration `envconfig:"KAFKA_PUBLISH_TIMEOUT" default:"10s"`
	SendRetries     int           `envconfig:"KAFKA_SEND_RETRIES" default:"3" validate:"min=1"`
}

// Brokers splits the comma-separated bootstrap server list.
func (k KafkaConfig) Brokers() []string {
	parts := strings.Split(k.BootstrapServers, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

// LoaderConfig holds the bulk loader's warehouse connection and staging
// area settings. DatabaseURL is only required by the loader binary, so it is
// validated there rather than at load time.
type LoaderConfig struct {
	DatabaseURL string `envconfig:"DATABASE_URL"`
	StagingDir  string `envconfig:"STAGING_DIR" default:"/var/lib/graphbridge/staging"`
	BatchSize   int    `envconfig:"LOAD_BATCH_SIZE" default:"10000" validate:"min=1"`
}
