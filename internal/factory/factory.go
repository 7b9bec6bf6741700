package factory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pin-relay/internal/client"
	"pin-relay/internal/config"
	"pin-relay/internal/encryption"
	"pin-relay/internal/events"
	"pin-relay/internal/repository"
	"pin-relay/internal/repository/memory"
	redisstore "pin-relay/internal/repository/redis"
	"pin-relay/internal/service"
	"pin-relay/internal/tls"
	"pin-relay/internal/util"
)

// Factory manages the lifecycle of the queue server dependencies
type Factory struct {
	config     *config.Config
	tlsManager *tls.TLSManager

	// Clients
	redisClient   *client.RedisClient
	kafkaProducer *client.KafkaProducer

	encryptionManager *encryption.EncryptionManager

	queueStore     repository.QueueStore
	publisher      events.Publisher
	serviceFactory *service.ServiceFactory

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory loads configuration, initializes logging and wires the queue
// server dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	return newFactory(cfg)
}

func newFactory(cfg *config.Config) (*Factory, error) {
	factory := &Factory{
		config:    cfg,
		closed:    make(chan struct{}),
		publisher: events.NoopPublisher{},
	}

	if cfg.Server.EnableTLS {
		factory.tlsManager = tls.NewTLSManager(cfg.Server)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := factory.initializeClients(ctx); err != nil {
		factory.Close()
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	if err := factory.initializeStore(ctx); err != nil {
		factory.Close()
		return nil, fmt.Errorf("failed to initialize queue store: %w", err)
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.String("store_backend", cfg.Store.Backend),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kafka_enabled", cfg.Kafka.Enabled),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
	)

	return factory, nil
}

// initializeClients brings up the optional infrastructure the configuration asks for
func (f *Factory) initializeClients(ctx context.Context) error {
	if f.config.Store.Backend == "redis" {
		redisClient, err := client.NewRedisClient(f.config, util.Get())
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		f.redisClient = redisClient
		util.Info("Redis client initialized and healthy")
	}

	if f.config.Kafka.Enabled {
		producer, err := client.NewKafkaProducer(f.config, util.Get())
		if err != nil {
			if f.config.IsProduction() {
				return fmt.Errorf("kafka: %w", err)
			}
			util.Warn("Kafka producer initialization failed - proceeding without events", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
			f.publisher = events.NewKafkaPublisher(producer)
			if err := producer.HealthCheck(ctx); err != nil {
				util.Warn("Kafka broker not reachable yet", util.ErrorField(err))
			}
		}
	}

	return nil
}

func (f *Factory) initializeStore(ctx context.Context) error {
	switch f.config.Store.Backend {
	case "memory", "":
		f.queueStore = memory.NewQueueStore()
	case "redis":
		if !f.config.KMS.Enabled && f.config.Encryption.MasterKey == "" {
			return errors.New("STORE_BACKEND=redis requires ENCRYPTION_KEY or KMS_ENABLED")
		}
		var kmsClient encryption.KMSAPI
		if f.config.KMS.Enabled {
			c, err := encryption.NewKMSClient(ctx, f.config)
			if err != nil {
				return err
			}
			kmsClient = c
		}

		em, err := encryption.NewEncryptionManager(f.config, kmsClient)
		if err != nil {
			return err
		}
		f.encryptionManager = em
		f.queueStore = redisstore.NewQueueStore(f.redisClient, em, f.config.Store.Retention)
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", f.config.Store.Backend)
	}
	return nil
}

// ServiceFactory returns the service factory (singleton)
func (f *Factory) ServiceFactory() *service.ServiceFactory {
	if f.serviceFactory == nil {
		f.serviceFactory = service.NewServiceFactory(f.queueStore, f.publisher, util.Get())
	}
	return f.serviceFactory
}

// HealthCheck reports failing dependencies by name
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.queueStore == nil {
		healthErrors["queue_store"] = fmt.Errorf("queue store not initialized")
	} else if err := f.queueStore.HealthCheck(ctx); err != nil {
		healthErrors["queue_store"] = err
	}

	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}

	return healthErrors
}

// IsHealthy ignores Kafka, which only carries best-effort events
func (f *Factory) IsHealthy(ctx context.Context) bool {
	healthErrors := f.HealthCheck(ctx)
	delete(healthErrors, "kafka")
	return len(healthErrors) == 0
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}

		if f.redisClient != nil {
			_ = f.redisClient.Close()
		}

		if f.encryptionManager != nil {
			f.encryptionManager.ClearCache()
			util.Info("Encryption manager cache cleared")
		}

		util.Info("Factory shutdown completed")
		util.Sync()
	})

	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}

func (f *Factory) QueueStore() repository.QueueStore {
	return f.queueStore
}
