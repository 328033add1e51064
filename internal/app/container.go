package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/migueljbento/percenseo/internal/api/handlers"
	"github.com/migueljbento/percenseo/internal/config"
	"github.com/migueljbento/percenseo/internal/infra/redis"
	"github.com/migueljbento/percenseo/internal/queue"
	"github.com/migueljbento/percenseo/internal/repository"
	"github.com/migueljbento/percenseo/internal/repository/factory"
	"github.com/migueljbento/percenseo/internal/service/concurrency"
	resultsvc "github.com/migueljbento/percenseo/internal/service/result"
	"github.com/migueljbento/percenseo/internal/survey"
	"github.com/migueljbento/percenseo/internal/telephony"
	telephonyMock "github.com/migueljbento/percenseo/internal/telephony/mock"
	"github.com/migueljbento/percenseo/pkg/logger"
)

// Container wires together shared infrastructure dependencies. Kafka and
// Redis are optional and stay nil when not configured.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Redis *redis.Client
	Kafka *queue.Kafka

	storeMu sync.Mutex
	store   repository.ResultStore

	// lazily initialised components
	components struct {
		once      sync.Once
		publisher *queue.ResultPublisher
	}
}

// Build constructs a container for the given configuration.
func Build(ctx context.Context, cfg *config.Config) (*Container, error) {
	lg, err := logger.New(cfg.App.Env, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	container := &Container{
		Config: cfg,
		Logger: lg,
	}

	if cfg.Redis.Address != "" {
		redisClient, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			lg.Sync()
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		container.Redis = redisClient
	}

	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := queue.NewKafka(cfg.Kafka)
		if err != nil {
			_ = container.Close(ctx)
			return nil, fmt.Errorf("bootstrap kafka: %w", err)
		}
		container.Kafka = kafka
	}

	return container, nil
}

func (c *Container) initComponents() {
	c.components.once.Do(func() {
		if c.Kafka != nil {
			c.components.publisher = queue.NewResultPublisher(c.Kafka, c.Config.Kafka.ResultTopic)
		}
	})
}

// StoreOpener routes store locations using the configured pool settings.
func (c *Container) StoreOpener() repository.Opener {
	return factory.NewOpener(c.Config.Store, c.Logger)
}

// ResultStore opens the configured store on first use and keeps it until Close.
func (c *Container) ResultStore(ctx context.Context) (repository.ResultStore, error) {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	if c.store != nil {
		return c.store, nil
	}
	store, err := c.StoreOpener()(ctx, c.Config.Store.Location)
	if err != nil {
		return nil, err
	}
	c.store = store
	return store, nil
}

// ResultService builds the callback result service over the configured store.
func (c *Container) ResultService(ctx context.Context) (*resultsvc.Service, error) {
	c.initComponents()

	store, err := c.ResultStore(ctx)
	if err != nil {
		return nil, err
	}

	var publisher resultsvc.Publisher
	if c.components.publisher != nil {
		publisher = c.components.publisher
	}
	return resultsvc.NewService(store, publisher, c.Logger), nil
}

// HandlerSet builds HTTP handlers with dependencies.
func (c *Container) HandlerSet(ctx context.Context) (*handlers.HandlerSet, error) {
	results, err := c.ResultService(ctx)
	if err != nil {
		return nil, err
	}
	return handlers.NewHandlerSet(results, handlers.Options{
		CallPath:   c.Config.HTTP.CallPath,
		ResultPath: c.Config.HTTP.ResultPath,
		ResultURL:  c.Config.Survey.CallResultURL,
		Prompt:     c.Prompt(),
	}, c.Logger)
}

// Prompt returns the configured in-call script.
func (c *Container) Prompt() telephony.Prompt {
	p := c.Config.Prompt
	if len(p.Lines) == 0 {
		return telephony.DefaultPrompt()
	}
	return telephony.Prompt{
		Lines:        p.Lines,
		Voice:        p.Voice,
		Language:     p.Language,
		GatherDigits: p.GatherDigits,
	}
}

// ProviderSettings returns the dialing service tuning. Credentials are set
// by the survey builder.
func (c *Container) ProviderSettings() telephony.Settings {
	t := c.Config.Twilio
	return telephony.Settings{
		BaseURL:        t.BaseURL,
		RequestTimeout: t.RequestTimeout,
		RingTimeout:    t.RingTimeout,
		MachineAction:  t.MachineAction,
	}
}

// DialerFactory returns the Twilio dialer factory, or the simulated one for
// dry runs.
func (c *Container) DialerFactory(dryRun bool) survey.DialerFactory {
	if dryRun {
		return func(ctx context.Context, s telephony.Settings) (telephony.Dialer, error) {
			return telephonyMock.NewDialer(s), nil
		}
	}
	return func(ctx context.Context, s telephony.Settings) (telephony.Dialer, error) {
		return telephony.NewTwilioDialer(ctx, s, c.Logger, nil)
	}
}

// Lease returns the run lease for a store location, or nil without Redis.
func (c *Container) Lease(location string, runID uuid.UUID) *concurrency.Lease {
	if c.Redis == nil {
		return nil
	}
	return concurrency.NewLease(c.Redis.Inner(), c.Config.Redis.LeaseKeyPrefix, location, runID, c.Config.Redis.LeaseTTL)
}

// Close releases all held resources.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if p := c.components.publisher; p != nil {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("result publisher close: %w", err))
		}
	}
	if c.Kafka != nil {
		if err := c.Kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	c.storeMu.Lock()
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
		c.store = nil
	}
	c.storeMu.Unlock()
	if c.Logger != nil {
		c.Logger.Sync()
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

// EnsureTopics ensures required Kafka topics exist. It is a no-op without Kafka.
func (c *Container) EnsureTopics(ctx context.Context) error {
	if c.Kafka == nil {
		return nil
	}
	partitions := c.Config.Kafka.Partitions
	if partitions <= 0 {
		partitions = 6
	}
	replication := c.Config.Kafka.ReplicationFactor
	if replication <= 0 {
		replication = 1
	}
	return c.Kafka.EnsureTopics(ctx, []string{c.Config.Kafka.ResultTopic}, partitions, replication)
}
