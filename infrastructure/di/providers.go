package di

import (
	"context"
	"fmt"

	"contentforge/application/ports"
	"contentforge/application/services"
	"contentforge/application/workflows"
	"contentforge/infrastructure/config"
	"contentforge/infrastructure/generation/local"
	openaigen "contentforge/infrastructure/generation/openai"
	"contentforge/infrastructure/generation/tools"
	"contentforge/infrastructure/messaging/eventbridge"
	dynamostore "contentforge/infrastructure/persistence/dynamodb"
	"contentforge/infrastructure/persistence/memory"
	miniostore "contentforge/infrastructure/persistence/minio"
	redisstore "contentforge/infrastructure/persistence/redis"
	"contentforge/infrastructure/projects"
	"contentforge/infrastructure/ranking"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
)

// Backends bundles the port implementations selected by the storage driver.
// In "memory" mode everything runs in-process; "aws" wires DynamoDB, Redis,
// object storage and EventBridge.
type Backends struct {
	Snapshots    ports.SnapshotStore
	Mutex        ports.WorkspaceMutex
	StepLog      ports.StepLog
	Mailbox      ports.Mailbox
	RankingCache ports.RankingCache
	EventBus     ports.EventBus
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideBackends constructs the storage and messaging backends for the
// configured driver.
func ProvideBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backends, error) {
	switch cfg.StorageDriver {
	case "memory":
		return &Backends{
			Snapshots:    memory.NewSnapshotStore(),
			Mutex:        memory.NewMutex(),
			StepLog:      memory.NewStepLog(),
			Mailbox:      memory.NewMailbox(),
			RankingCache: memory.NewRankingCache(),
			EventBus:     memory.NewEventBus(),
		}, nil

	case "aws":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		dynamoClient := awsdynamodb.NewFromConfig(awsCfg)
		eventBridgeClient := awseventbridge.NewFromConfig(awsCfg)

		redisClient, err := redisstore.NewClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}

		snapshots, err := miniostore.NewSnapshotStore(ctx, miniostore.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		}, logger)
		if err != nil {
			return nil, err
		}

		return &Backends{
			Snapshots:    snapshots,
			Mutex:        dynamostore.NewWorkspaceMutex(dynamoClient, cfg.DynamoDBTable, logger),
			StepLog:      dynamostore.NewStepLog(dynamoClient, cfg.DynamoDBTable, logger),
			Mailbox:      redisstore.NewMailbox(redisClient, logger),
			RankingCache: redisstore.NewRankingCache(redisClient, logger),
			EventBus:     eventbridge.NewPublisher(eventBridgeClient, cfg.EventBusName, logger),
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// ProvideSnapshotStore extracts the snapshot store backend
func ProvideSnapshotStore(b *Backends) ports.SnapshotStore { return b.Snapshots }

// ProvideWorkspaceMutex extracts the workspace mutex backend
func ProvideWorkspaceMutex(b *Backends) ports.WorkspaceMutex { return b.Mutex }

// ProvideStepLog extracts the step log backend
func ProvideStepLog(b *Backends) ports.StepLog { return b.StepLog }

// ProvideMailbox extracts the mailbox backend
func ProvideMailbox(b *Backends) ports.Mailbox { return b.Mailbox }

// ProvideRankingCache extracts the ranking cache backend
func ProvideRankingCache(b *Backends) ports.RankingCache { return b.RankingCache }

// ProvideEventBus extracts the event bus backend
func ProvideEventBus(b *Backends) ports.EventBus { return b.EventBus }

// ProvideToolset creates the toolset offered to the generation model
func ProvideToolset(cfg *config.Config, cache ports.RankingCache, provider ports.RankingProvider, logger *zap.Logger) ports.Toolset {
	return tools.NewRankingToolset(cache, provider, ports.Project{
		LocationName: cfg.ProjectLocationName,
		LanguageCode: cfg.ProjectLanguageCode,
	}, logger)
}

// ProvideGenerator selects the generation backend. Without an API key the
// deterministic local generator keeps development runs working offline.
func ProvideGenerator(cfg *config.Config, toolset ports.Toolset, logger *zap.Logger) (ports.Generator, error) {
	if cfg.OpenAIAPIKey == "" {
		logger.Warn("No OpenAI API key configured, using local generator")
		return local.NewGenerator(), nil
	}
	return openaigen.NewGenerator(openaigen.Config{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
	}, logger, openaigen.WithToolset(toolset))
}

// ProvideRankingProvider selects the ranking data backend
func ProvideRankingProvider(cfg *config.Config, logger *zap.Logger) ports.RankingProvider {
	if cfg.RankingEndpoint == "" {
		logger.Warn("No ranking endpoint configured, using static provider")
		return ranking.NewStaticProvider()
	}
	return ranking.NewProvider(ranking.Config{
		Endpoint: cfg.RankingEndpoint,
		APIKey:   cfg.RankingAPIKey,
	}, logger)
}

// ProvideProjectStore creates the project context store
func ProvideProjectStore(cfg *config.Config) (ports.ProjectStore, error) {
	return projects.NewStaticStore(ports.Project{
		LocationName:         cfg.ProjectLocationName,
		LanguageCode:         cfg.ProjectLanguageCode,
		RequireContentReview: cfg.RequireContentReview,
	}, cfg.ProjectOverrides)
}

// ProvideWorkspaceAccess creates the shared workspace access helper
func ProvideWorkspaceAccess(snapshots ports.SnapshotStore, mutex ports.WorkspaceMutex, logger *zap.Logger) *workflows.WorkspaceAccess {
	return workflows.NewWorkspaceAccess(snapshots, mutex, logger)
}

// ProvidePlanner creates the planner workflow definition
func ProvidePlanner(
	workspace *workflows.WorkspaceAccess,
	projectStore ports.ProjectStore,
	cache ports.RankingCache,
	provider ports.RankingProvider,
	generator ports.Generator,
	mailbox ports.Mailbox,
	stepLog ports.StepLog,
	eventBus ports.EventBus,
	logger *zap.Logger,
) *workflows.Planner {
	return workflows.NewPlanner(workspace, projectStore, cache, provider, generator, mailbox, stepLog, eventBus, logger)
}

// ProvideWriter creates the writer workflow definition
func ProvideWriter(
	cfg *config.Config,
	workspace *workflows.WorkspaceAccess,
	projectStore ports.ProjectStore,
	generator ports.Generator,
	mailbox ports.Mailbox,
	stepLog ports.StepLog,
	eventBus ports.EventBus,
	logger *zap.Logger,
) *workflows.Writer {
	return workflows.NewWriter(workspace, projectStore, generator, mailbox, stepLog, eventBus, logger,
		workflows.WithOutlineWaitTimeout(cfg.OutlineWaitTimeout),
	)
}

// ProvideContentService creates the content application service
func ProvideContentService(
	workspace *workflows.WorkspaceAccess,
	planner *workflows.Planner,
	writer *workflows.Writer,
	stepLog ports.StepLog,
	logger *zap.Logger,
) *services.ContentService {
	return services.NewContentService(workspace, planner, writer, stepLog, logger)
}
