package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/slackmgr/projectindex"
	"github.com/slackmgr/projectindex/blob"
	"github.com/slackmgr/projectindex/bolt"
	"github.com/slackmgr/projectindex/config"
	"github.com/slackmgr/projectindex/dynamodb"
	"github.com/slackmgr/projectindex/logging"
	"github.com/slackmgr/projectindex/memory"
	"github.com/slackmgr/projectindex/notify"
	"github.com/slackmgr/projectindex/postgres"
	"github.com/slackmgr/projectindex/pubsub"
	"github.com/slackmgr/projectindex/resource"
	"github.com/slackmgr/projectindex/sqs"
	"github.com/slackmgr/projectindex/store"
	"github.com/slackmgr/types"
	"github.com/spf13/cobra"
)

// app is everything one command invocation needs. close releases the store
// and publishers in reverse order of creation.
type app struct {
	svc     *projectindex.Service
	logger  types.Logger
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// loadConfig reads the environment and applies the persistent flags.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if flags.backend != "" {
		cfg.Backend = config.Backend(strings.ToLower(flags.backend))
	}

	if flags.dataDir != "" {
		cfg.DataDir = flags.dataDir
		cfg.BoltPath = filepath.Join(flags.dataDir, "records.db")
		cfg.BlobDir = filepath.Join(flags.dataDir, "blobs")
	}

	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func openApp(cmd *cobra.Command, flags *globalFlags) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a := &app{
		logger: logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogConsole),
	}

	if err := a.build(ctx, cfg); err != nil {
		a.close()
		return nil, err
	}

	return a, nil
}

func (a *app) build(ctx context.Context, cfg *config.Config) error {
	var awsCfg *aws.Config

	if cfg.NeedsAWS() {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}

		loaded, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return fmt.Errorf("failed to load AWS config: %w", err)
		}

		awsCfg = &loaded
	}

	s, err := a.openStore(ctx, cfg, awsCfg)
	if err != nil {
		return err
	}

	blobs, err := blob.NewFileStore(cfg.BlobDir)
	if err != nil {
		return err
	}

	publisher, err := a.openPublishers(ctx, cfg, awsCfg)
	if err != nil {
		return err
	}

	var resourceOpts []resource.Option
	if cfg.LastWriterWins {
		resourceOpts = append(resourceOpts, resource.WithLastWriterWins())
	}

	a.svc, err = projectindex.New(s, blobs, a.logger,
		projectindex.WithPublisher(publisher),
		projectindex.WithResourceOptions(resourceOpts...),
	)
	if err != nil {
		return err
	}

	return nil
}

//nolint:ireturn // Backends are chosen at runtime.
func (a *app) openStore(ctx context.Context, cfg *config.Config, awsCfg *aws.Config) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendBolt:
		s, err := bolt.Open(cfg.BoltPath)
		if err != nil {
			return nil, err
		}

		a.closers = append(a.closers, func() {
			if err := s.Close(); err != nil {
				a.logger.Errorf("Failed to close bolt store: %s", err)
			}
		})

		return s, nil
	case config.BackendDynamoDB:
		c := dynamodb.New(awsCfg, cfg.DynamoDBTable)

		if err := c.Connect(); err != nil {
			return nil, err
		}

		if err := c.Init(ctx, false); err != nil {
			return nil, err
		}

		return c, nil
	case config.BackendPostgres:
		c := postgres.New(
			postgres.WithHost(cfg.PostgresHost),
			postgres.WithPort(cfg.PostgresPort),
			postgres.WithUser(cfg.PostgresUser),
			postgres.WithPassword(cfg.PostgresPassword),
			postgres.WithDatabase(cfg.PostgresDatabase),
			postgres.WithSSLMode(postgres.SSLMode(cfg.PostgresSSLMode)),
			postgres.WithRecordsTable(cfg.PostgresTable),
		)

		if err := c.Connect(ctx); err != nil {
			return nil, err
		}

		a.closers = append(a.closers, func() {
			if err := c.Close(context.Background()); err != nil {
				a.logger.Errorf("Failed to close postgres client: %s", err)
			}
		})

		if err := c.Init(ctx, false); err != nil {
			return nil, err
		}

		return c, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

//nolint:ireturn // Returns whichever publishers are configured.
func (a *app) openPublishers(ctx context.Context, cfg *config.Config, awsCfg *aws.Config) (notify.Publisher, error) {
	var publishers notify.Multi

	if cfg.SQSQueue != "" {
		p, err := sqs.NewPublisher(awsCfg, cfg.SQSQueue, a.logger).Init(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQS publisher: %w", err)
		}

		publishers = append(publishers, p)
	}

	if cfg.PubSubProject != "" {
		client, err := gcppubsub.NewClient(ctx, cfg.PubSubProject)
		if err != nil {
			return nil, fmt.Errorf("failed to create pub/sub client: %w", err)
		}

		a.closers = append(a.closers, func() { _ = client.Close() })

		p, err := pubsub.NewPublisher(client, cfg.PubSubTopic, true, a.logger).Init(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize pub/sub publisher: %w", err)
		}

		a.closers = append(a.closers, p.Close)

		publishers = append(publishers, p)
	}

	if len(publishers) == 0 {
		return notify.Nop{}, nil
	}

	return publishers, nil
}
