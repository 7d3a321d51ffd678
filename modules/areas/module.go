package areas

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/pocotu/oficri-areas/modules/areas/domain/events"
	"github.com/pocotu/oficri-areas/modules/areas/domain/hierarchy"
	"github.com/pocotu/oficri-areas/modules/areas/infrastructure/cache"
	"github.com/pocotu/oficri-areas/modules/areas/infrastructure/messaging"
	"github.com/pocotu/oficri-areas/modules/areas/infrastructure/persistence"
	"github.com/pocotu/oficri-areas/modules/areas/presentation/controllers"
	"github.com/pocotu/oficri-areas/modules/areas/services"
	"github.com/pocotu/oficri-areas/pkg/configuration"
	"github.com/pocotu/oficri-areas/pkg/eventbus"
	"github.com/pocotu/oficri-areas/pkg/middleware"
	"github.com/pocotu/oficri-areas/pkg/server"
)

type Options struct {
	Config *configuration.Configuration
	Logger *logrus.Logger
	// Repository defaults to the Postgres repository.
	Repository services.AreaRepository
	// TxRunner defaults to services.PostgresTx.
	TxRunner services.TxRunner
}

type Module struct {
	Service *services.AreaService
	Bus     *eventbus.Bus[events.AreaEventV1]

	controllers []server.Controller
	redis       *redis.Client
	logger      *logrus.Logger
}

func NewModule(opts Options) (*Module, error) {
	conf := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = conf.Logger()
	}
	repo := opts.Repository
	if repo == nil {
		repo = persistence.NewAreaRepository()
	}

	m := &Module{logger: logger, Bus: eventbus.New[events.AreaEventV1](logger)}
	m.Bus.Subscribe(logEvent(logger))

	svcOpts := []services.Option{
		services.WithEngine(hierarchy.New(hierarchy.WithLanguage(conf.Areas.Language()))),
		services.WithPublisher(m.Bus),
		services.WithTxRunner(opts.TxRunner),
	}

	if conf.Areas.CacheEnabled {
		switch conf.Areas.CacheBackend {
		case "redis":
			client, err := middleware.NewRedisClient(conf.Areas.RedisURL)
			if err != nil {
				return nil, err
			}
			m.redis = client
			svcOpts = append(svcOpts, services.WithCache(cache.NewRedisCache(client, "", conf.Areas.CacheTTL)))
			m.Bus.Subscribe(messaging.NewRedisRelay(client, "").Handle)
		default:
			svcOpts = append(svcOpts, services.WithCache(cache.NewMemoryCache(conf.Areas.CacheTTL)))
		}
		logger.WithFields(logrus.Fields{
			"backend": conf.Areas.CacheBackend,
			"ttl":     conf.Areas.CacheTTL.String(),
		}).Info("areas snapshot cache enabled")
	}

	m.Service = services.NewAreaService(repo, svcOpts...)
	m.controllers = []server.Controller{
		controllers.NewAreaAPIController(m.Service,
			controllers.WithMiddlewares(middleware.RequireTenantHeader(conf.Areas.TenantHeader)),
		),
	}
	return m, nil
}

func (m *Module) Name() string {
	return "areas"
}

func (m *Module) Controllers() []server.Controller {
	return m.controllers
}

// Close releases the Redis client, if any, and drops bus subscribers.
func (m *Module) Close() error {
	m.Bus.Clear()
	if m.redis != nil {
		return m.redis.Close()
	}
	return nil
}

func logEvent(logger *logrus.Logger) eventbus.Handler[events.AreaEventV1] {
	return func(_ context.Context, ev events.AreaEventV1) error {
		logger.WithFields(logrus.Fields{
			"event_id":    ev.EventID.String(),
			"tenant_id":   ev.TenantID.String(),
			"change_type": ev.ChangeType,
			"entity_id":   ev.EntityID.String(),
			"sequence":    ev.Sequence,
			"tx_time":     ev.TransactionTime.Format(time.RFC3339),
		}).Debug("areas.event.published")
		return nil
	}
}
