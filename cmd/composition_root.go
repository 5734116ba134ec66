package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"dispatch/internal/adapters/in/http"
	"dispatch/internal/adapters/out/postgres"
	"dispatch/internal/adapters/out/postgres/eventrepo"
	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/application/usecases/queries"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/eventbus"
	"dispatch/internal/geoindex"
	"dispatch/internal/jobs"
	"dispatch/internal/session"

	"gorm.io/gorm"
)

// CompositionRoot wires the application together: the transactional
// repositories, the dispatch planner, the in-process driver index, the event
// bus and the session registry. The index and bus are singletons shared by
// every handler; both shadow storage and are rebuilt from it at startup.
type CompositionRoot struct {
	gormDB     *gorm.DB
	config     Config
	logger     *slog.Logger
	uowFactory *postgres.GormUnitOfWorkFactory
	planner    services.DispatchPlanner
	index      *geoindex.Index
	bus        *eventbus.Bus
	registry   *session.Registry
}

// NewCompositionRoot builds the object graph. It reads driver storage to
// warm the geospatial index and the event log head to seed the bus, so it
// must run after migrations.
func NewCompositionRoot(ctx context.Context, config Config, gormDB *gorm.DB, logger *slog.Logger) (*CompositionRoot, error) {
	uowFactory := postgres.NewGormUnitOfWorkFactory(gormDB)

	planner, err := services.NewDispatchPlanner(services.PlannerSettings{
		BaseRadiusMeters: config.BaseRadiusMeters,
		MaxRadiusMeters:  config.MaxRadiusMeters,
		OfferTimeout:     config.OfferTimeout,
		RetryBackoffBase: config.RetryBackoffBase,
		RetryBackoffCap:  config.RetryBackoffCap,
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch planner: %w", err)
	}

	index, err := rebuildIndex(ctx, uowFactory, config.GeoCellSizeMeters)
	if err != nil {
		return nil, fmt.Errorf("rebuild driver index: %w", err)
	}

	eventLog := eventrepo.NewGormEventRepository(gormDB)
	head, err := eventLog.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("read event head: %w", err)
	}
	bus := eventbus.NewBus(eventLog, config.EventRetention, head, logger)

	source := postgres.NewGormSnapshotSource(uowFactory)
	registry := session.NewRegistry(bus, source, logger)

	return &CompositionRoot{
		gormDB:     gormDB,
		config:     config,
		logger:     logger,
		uowFactory: uowFactory,
		planner:    planner,
		index:      index,
		bus:        bus,
		registry:   registry,
	}, nil
}

// rebuildIndex loads every driver and indexes the ones with a known
// position. Storage stays authoritative; the index is a queryable shadow.
func rebuildIndex(ctx context.Context, uowFactory *postgres.GormUnitOfWorkFactory, cellSizeMeters float64) (*geoindex.Index, error) {
	index := geoindex.NewIndex(cellSizeMeters)

	drivers, err := uowFactory.Create().DriverRepository().GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range drivers {
		if position := d.Position(); !position.IsZero() {
			index.Upsert(d.ID(), position.Point(), position.RecordedAt(), d.Availability())
		}
	}

	return index, nil
}

// Registry exposes the session registry for the HTTP stream endpoint.
func (c *CompositionRoot) Registry() *session.Registry {
	return c.registry
}

// Close releases the shared fan-out machinery.
func (c *CompositionRoot) Close() {
	c.bus.Close()
}

func (c *CompositionRoot) orderUoWFactory() commands.OrderUoWFactory {
	return FuncOrderUoWFactory(func() commands.OrderUoW {
		return c.uowFactory.Create()
	})
}

func (c *CompositionRoot) driverUoWFactory() commands.DriverUoWFactory {
	return FuncDriverUoWFactory(func() commands.DriverUoW {
		return c.uowFactory.Create()
	})
}

func (c *CompositionRoot) crossUoWFactory() commands.UoWFactory {
	return FuncUoWFactory(func() commands.UoW {
		return c.uowFactory.Create()
	})
}

func (c *CompositionRoot) CreateCreateOrderCommandHandler() commands.CreateOrderCommandHandler {
	return commands.NewCreateOrderCommandHandler(c.orderUoWFactory(), c.bus)
}

func (c *CompositionRoot) CreateTransitionOrderCommandHandler() commands.TransitionOrderCommandHandler {
	return commands.NewTransitionOrderCommandHandler(c.crossUoWFactory(), c.bus, c.index)
}

func (c *CompositionRoot) CreateRegisterDriverCommandHandler() commands.RegisterDriverCommandHandler {
	return commands.NewRegisterDriverCommandHandler(c.driverUoWFactory(), c.bus)
}

func (c *CompositionRoot) CreateReportPositionCommandHandler() commands.ReportPositionCommandHandler {
	return commands.NewReportPositionCommandHandler(c.driverUoWFactory(), c.bus, c.index)
}

func (c *CompositionRoot) CreateSetDriverShiftCommandHandler() commands.SetDriverShiftCommandHandler {
	return commands.NewSetDriverShiftCommandHandler(c.crossUoWFactory(), c.bus, c.index)
}

func (c *CompositionRoot) CreateAcceptOfferCommandHandler() commands.AcceptOfferCommandHandler {
	return commands.NewAcceptOfferCommandHandler(c.crossUoWFactory(), c.bus, c.index, c.planner)
}

func (c *CompositionRoot) CreateRejectOfferCommandHandler() commands.RejectOfferCommandHandler {
	return commands.NewRejectOfferCommandHandler(c.crossUoWFactory(), c.bus)
}

func (c *CompositionRoot) CreateDispatchOrdersCommandHandler() (commands.DispatchOrdersCommandHandler, error) {
	return commands.NewDispatchOrdersCommandHandler(
		c.crossUoWFactory(), c.bus, c.index, c.planner,
		c.config.BatchLimit, c.config.CandidateLimit,
	)
}

func (c *CompositionRoot) CreateExpireOffersCommandHandler() (commands.ExpireOffersCommandHandler, error) {
	return commands.NewExpireOffersCommandHandler(c.crossUoWFactory(), c.bus, c.config.BatchLimit)
}

func (c *CompositionRoot) CreateGetOrderQueryHandler() queries.GetOrderQueryHandler {
	return queries.NewGetOrderQueryHandler(c.gormDB)
}

func (c *CompositionRoot) CreateGetActiveOrdersQueryHandler() queries.GetActiveOrdersQueryHandler {
	return queries.NewGetActiveOrdersQueryHandler(c.gormDB)
}

func (c *CompositionRoot) CreateGetAllDriversQueryHandler() queries.GetAllDriversQueryHandler {
	return queries.NewGetAllDriversQueryHandler(c.gormDB)
}

// CreateHTTPServer wires every handler into the HTTP adapter.
func (c *CompositionRoot) CreateHTTPServer() *http.Server {
	return http.NewServer(
		c.CreateCreateOrderCommandHandler(),
		c.CreateTransitionOrderCommandHandler(),
		c.CreateRegisterDriverCommandHandler(),
		c.CreateReportPositionCommandHandler(),
		c.CreateSetDriverShiftCommandHandler(),
		c.CreateAcceptOfferCommandHandler(),
		c.CreateRejectOfferCommandHandler(),
		c.CreateGetOrderQueryHandler(),
		c.CreateGetActiveOrdersQueryHandler(),
		c.CreateGetAllDriversQueryHandler(),
		c.registry,
	)
}

// CreateJobManager wires the background sweeps.
func (c *CompositionRoot) CreateJobManager() (*jobs.JobManager, error) {
	dispatchHandler, err := c.CreateDispatchOrdersCommandHandler()
	if err != nil {
		return nil, err
	}
	expireHandler, err := c.CreateExpireOffersCommandHandler()
	if err != nil {
		return nil, err
	}

	return jobs.NewJobManager(
		dispatchHandler,
		expireHandler,
		c.registry,
		eventrepo.NewGormEventRepository(c.gormDB),
		c.config.SessionIdleTimeout,
		c.config.EventRetention,
		c.logger,
	), nil
}

type FuncOrderUoWFactory func() commands.OrderUoW

func (f FuncOrderUoWFactory) Create() commands.OrderUoW {
	return f()
}

type FuncDriverUoWFactory func() commands.DriverUoW

func (f FuncDriverUoWFactory) Create() commands.DriverUoW {
	return f()
}

type FuncUoWFactory func() commands.UoW

func (f FuncUoWFactory) Create() commands.UoW {
	return f()
}
