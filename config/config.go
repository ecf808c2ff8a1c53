// Package config resolves the settings of the projidx command from PROJIDX_*
// environment variables, falling back to XDG data paths for local storage.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
)

// Backend selects the store implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendBolt     Backend = "bolt"
	BackendDynamoDB Backend = "dynamodb"
	BackendPostgres Backend = "postgres"
)

// Backends lists every supported backend.
var Backends = []Backend{BackendMemory, BackendBolt, BackendDynamoDB, BackendPostgres}

const appDir = "projectindex"

// Config holds everything needed to build the service.
type Config struct {
	Backend Backend

	// DataDir holds the bolt file and blob content for local backends.
	DataDir  string
	BoltPath string
	BlobDir  string

	AWSRegion     string
	DynamoDBTable string

	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDatabase string
	PostgresSSLMode  string
	PostgresTable    string

	// SQSQueue is a queue name or URL. Empty disables SQS events.
	SQSQueue string

	// PubSubProject and PubSubTopic enable Pub/Sub events when both are set.
	PubSubProject string
	PubSubTopic   string

	LogLevel   string
	LogConsole bool

	LastWriterWins bool
}

// DataDir returns the default data directory: PROJIDX_DATA_DIR when set,
// otherwise projectindex under the XDG data home.
func DataDir() string {
	if explicit := os.Getenv("PROJIDX_DATA_DIR"); explicit != "" {
		return explicit
	}

	xdg.Reload()

	dataHome := xdg.DataHome
	if dataHome == "" {
		home := xdg.Home
		if home == "" {
			var err error
			home, err = os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), appDir)
			}
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	return filepath.Join(dataHome, appDir)
}

// Load reads the environment. It does not validate; call [Config.Validate]
// once flags have been applied.
func Load() (*Config, error) {
	dataDir := DataDir()

	cfg := &Config{
		Backend:          Backend(strings.ToLower(getenv("PROJIDX_BACKEND", string(BackendBolt)))),
		DataDir:          dataDir,
		BoltPath:         getenv("PROJIDX_BOLT_PATH", filepath.Join(dataDir, "records.db")),
		BlobDir:          getenv("PROJIDX_BLOB_DIR", filepath.Join(dataDir, "blobs")),
		AWSRegion:        os.Getenv("PROJIDX_AWS_REGION"),
		DynamoDBTable:    os.Getenv("PROJIDX_DYNAMODB_TABLE"),
		PostgresHost:     getenv("PROJIDX_PG_HOST", "localhost"),
		PostgresUser:     os.Getenv("PROJIDX_PG_USER"),
		PostgresPassword: os.Getenv("PROJIDX_PG_PASSWORD"),
		PostgresDatabase: os.Getenv("PROJIDX_PG_DATABASE"),
		PostgresSSLMode:  getenv("PROJIDX_PG_SSLMODE", "prefer"),
		PostgresTable:    getenv("PROJIDX_PG_TABLE", "records"),
		SQSQueue:         os.Getenv("PROJIDX_SQS_QUEUE"),
		PubSubProject:    os.Getenv("PROJIDX_PUBSUB_PROJECT"),
		PubSubTopic:      os.Getenv("PROJIDX_PUBSUB_TOPIC"),
		LogLevel:         getenv("PROJIDX_LOG_LEVEL", "info"),
	}

	var err error

	if cfg.PostgresPort, err = getenvInt("PROJIDX_PG_PORT", 5432); err != nil {
		return nil, err
	}

	if cfg.LogConsole, err = getenvBool("PROJIDX_LOG_CONSOLE", false); err != nil {
		return nil, err
	}

	if cfg.LastWriterWins, err = getenvBool("PROJIDX_LAST_WRITER_WINS", false); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendBolt:
		if c.BoltPath == "" {
			return errors.New("bolt backend requires a database path")
		}
	case BackendDynamoDB:
		if c.DynamoDBTable == "" {
			return errors.New("dynamodb backend requires PROJIDX_DYNAMODB_TABLE")
		}
	case BackendPostgres:
		if c.PostgresUser == "" || c.PostgresDatabase == "" {
			return errors.New("postgres backend requires PROJIDX_PG_USER and PROJIDX_PG_DATABASE")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	if c.BlobDir == "" {
		return errors.New("blob directory cannot be empty")
	}

	if (c.PubSubProject == "") != (c.PubSubTopic == "") {
		return errors.New("PROJIDX_PUBSUB_PROJECT and PROJIDX_PUBSUB_TOPIC must be set together")
	}

	return nil
}

// NeedsAWS reports whether an AWS config must be loaded.
func (c *Config) NeedsAWS() bool {
	return c.Backend == BackendDynamoDB || c.SQSQueue != ""
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return n, nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}

	return b, nil
}
