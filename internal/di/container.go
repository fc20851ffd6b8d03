package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/orderhub/api/internal/platform/config"
	"github.com/orderhub/api/internal/platform/events"
	pfirestore "github.com/orderhub/api/internal/platform/firestore"
	"github.com/orderhub/api/internal/platform/observability"
	"github.com/orderhub/api/internal/repositories"
	firestorerepo "github.com/orderhub/api/internal/repositories/firestore"
	"github.com/orderhub/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Orders   services.OrderService
	Payments services.PaymentService
	History  services.HistoryService
	Approval services.ApprovalPolicy
}

// Container wires repositories, services, and event publishing for runtime use.
type Container struct {
	Config       config.Config
	Logger       *zap.Logger
	Repositories repositories.Registry

	Services Services

	pubsubClient *pubsub.Client
}

// NewContainer constructs the runtime dependencies over Firestore-backed
// repositories. The Firestore client itself dials lazily on first use.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	provider := pfirestore.NewProvider(cfg.Firestore)
	registry, err := firestorerepo.NewRegistry(provider, firestorerepo.PageLimits{
		Default: cfg.Orders.DefaultPageSize,
		Max:     cfg.Orders.MaxPageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("build repository registry: %w", err)
	}

	catalog, err := firestorerepo.NewCatalogAdapter(provider)
	if err != nil {
		return nil, fmt.Errorf("build catalog adapter: %w", err)
	}
	directory, err := firestorerepo.NewDirectoryAdapter(provider)
	if err != nil {
		return nil, fmt.Errorf("build directory adapter: %w", err)
	}

	container := &Container{
		Config:       cfg,
		Logger:       logger,
		Repositories: registry,
	}

	var publisher services.OrderEventPublisher
	if cfg.Events.Enabled {
		client, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("build pubsub client: %w", err)
		}
		container.pubsubClient = client

		publisher, err = events.NewPubSubOrderEventPublisher(client.Topic(cfg.Events.Topic))
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("build order event publisher: %w", err)
		}
	}

	svc, err := buildServices(registry, catalog, directory, publisher, cfg, logger)
	if err != nil {
		if container.pubsubClient != nil {
			_ = container.pubsubClient.Close()
		}
		return nil, err
	}
	container.Services = svc

	return container, nil
}

// Close releases repository clients and the event publisher connection.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}

	var errs []error
	if c.pubsubClient != nil {
		if err := c.pubsubClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pubsub client: %w", err))
		}
	}
	if c.Repositories != nil {
		if err := c.Repositories.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close repositories: %w", err))
		}
	}
	return errors.Join(errs...)
}

func buildServices(reg repositories.Registry, catalog services.ProductCatalog, directory services.Directory, publisher services.OrderEventPublisher, cfg config.Config, logger *zap.Logger) (Services, error) {
	var svc Services

	historySvc, err := services.NewHistoryService(services.HistoryServiceDeps{
		Repository: reg.History(),
		Clock:      time.Now,
		Logger:     observability.NewWarnfAdapter(logger),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build history service: %w", err)
	}
	svc.History = historySvc

	numbers := services.NewNumberGenerator(services.NumberGeneratorDeps{})
	eventLogger := observability.EventLogger(logger)

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:        reg.Orders(),
		Payments:      reg.Payments(),
		History:       historySvc,
		UnitOfWork:    reg,
		Catalog:       catalog,
		Directory:     directory,
		Numbers:       numbers,
		Clock:         time.Now,
		Events:        publisher,
		Logger:        eventLogger,
		NumberRetries: cfg.Orders.NumberRetries,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	paymentSvc, err := services.NewPaymentService(services.PaymentServiceDeps{
		Orders:        reg.Orders(),
		Payments:      reg.Payments(),
		History:       historySvc,
		UnitOfWork:    reg,
		Numbers:       numbers,
		Clock:         time.Now,
		Events:        publisher,
		Logger:        eventLogger,
		NumberRetries: cfg.Orders.NumberRetries,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment service: %w", err)
	}
	svc.Payments = paymentSvc

	svc.Approval = services.NewNetworkApprovalPolicy(&services.ApprovalSettings{
		RequireApproval: cfg.Orders.RequireApproval,
		Threshold:       cfg.Orders.ApprovalThreshold,
	})

	return svc, nil
}
