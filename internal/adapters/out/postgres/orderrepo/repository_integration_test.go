package orderrepo_test

import (
	"context"
	"testing"
	"time"

	"dispatch/internal/adapters/out/postgres/orderrepo"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/pkg/errs"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	postgresdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// OrderRepositoryIntegrationTestSuite provides integration tests for
// GormOrderRepository using a PostgreSQL container to verify real persistence
// behavior, including the conditional-write concurrency checks.
type OrderRepositoryIntegrationTestSuite struct {
	suite.Suite
	container  *postgres.PostgresContainer
	db         *gorm.DB
	repository *orderrepo.GormOrderRepository
}

func (suite *OrderRepositoryIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	suite.Require().NoError(err)
	suite.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	suite.Require().NoError(err)

	db, err := gorm.Open(postgresdriver.Open(connStr), &gorm.Config{})
	suite.Require().NoError(err)
	suite.db = db

	suite.Require().NoError(db.AutoMigrate(&orderrepo.OrderDTO{}))
}

func (suite *OrderRepositoryIntegrationTestSuite) SetupTest() {
	suite.Require().NoError(suite.db.Exec("TRUNCATE TABLE orders").Error)
	suite.repository = orderrepo.NewGormOrderRepository(suite.db)
}

func (suite *OrderRepositoryIntegrationTestSuite) TearDownSuite() {
	if suite.container != nil {
		suite.Require().NoError(suite.container.Terminate(context.Background()))
	}
}

func (suite *OrderRepositoryIntegrationTestSuite) TestAdd_ValidOrder_Success() {
	ctx := context.Background()

	testOrder := suite.createTestOrder()

	err := suite.repository.Add(ctx, testOrder)
	suite.Require().NoError(err)

	suite.assertOrderCount(1)
}

func (suite *OrderRepositoryIntegrationTestSuite) TestGet_ExistingOrder_RoundTrips() {
	ctx := context.Background()

	original := suite.createTestOrder()
	suite.Require().NoError(suite.repository.Add(ctx, original))

	retrieved, err := suite.repository.Get(ctx, original.ID())
	suite.Require().NoError(err)

	suite.Equal(original.ID(), retrieved.ID())
	suite.Equal(original.Destination().Lat(), retrieved.Destination().Lat())
	suite.Equal(original.Destination().Lon(), retrieved.Destination().Lon())
	suite.Equal(original.Items(), retrieved.Items())
	suite.Equal(order.Pending, retrieved.Status())
	suite.Equal(original.Version(), retrieved.Version())
	suite.Nil(retrieved.AssignedDriver())
	suite.Equal(0, retrieved.DispatchAttempts())
	suite.WithinDuration(original.NextDispatchAt(), retrieved.NextDispatchAt(), time.Millisecond)
}

func (suite *OrderRepositoryIntegrationTestSuite) TestGet_NonExistentOrder_ReturnsNotFoundError() {
	ctx := context.Background()

	retrieved, err := suite.repository.Get(ctx, kernel.NewUUID())

	suite.Nil(retrieved)
	suite.Require().Error(err)

	var notFoundErr *errs.ObjectNotFoundError
	suite.Require().ErrorAs(err, &notFoundErr)
}

func (suite *OrderRepositoryIntegrationTestSuite) TestUpdate_MatchingVersion_Persists() {
	ctx := context.Background()

	testOrder := suite.createTestOrder()
	suite.Require().NoError(suite.repository.Add(ctx, testOrder))

	now := time.Now().UTC().Truncate(time.Microsecond)
	suite.Require().NoError(testOrder.TransitionTo(order.Preparing, now))
	suite.Require().NoError(suite.repository.Update(ctx, testOrder))

	retrieved, err := suite.repository.Get(ctx, testOrder.ID())
	suite.Require().NoError(err)
	suite.Equal(order.Preparing, retrieved.Status())
	suite.Equal(testOrder.Version(), retrieved.Version())
}

func (suite *OrderRepositoryIntegrationTestSuite) TestUpdate_StaleVersion_ReturnsConcurrencyConflict() {
	ctx := context.Background()

	testOrder := suite.createTestOrder()
	suite.Require().NoError(suite.repository.Add(ctx, testOrder))

	// Two handlers read the same version; the first write wins.
	first, err := suite.repository.Get(ctx, testOrder.ID())
	suite.Require().NoError(err)
	second, err := suite.repository.Get(ctx, testOrder.ID())
	suite.Require().NoError(err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	suite.Require().NoError(first.TransitionTo(order.Preparing, now))
	suite.Require().NoError(suite.repository.Update(ctx, first))

	suite.Require().NoError(second.TransitionTo(order.Cancelled, now))
	err = suite.repository.Update(ctx, second)
	suite.Require().Error(err)
	suite.Require().ErrorIs(err, errs.ErrConcurrencyConflict)

	retrieved, err := suite.repository.Get(ctx, testOrder.ID())
	suite.Require().NoError(err)
	suite.Equal(order.Preparing, retrieved.Status())
}

func (suite *OrderRepositoryIntegrationTestSuite) TestUpdate_NonExistentOrder_ReturnsNotFoundError() {
	ctx := context.Background()

	missing := suite.createTestOrder()
	now := time.Now().UTC().Truncate(time.Microsecond)
	suite.Require().NoError(missing.TransitionTo(order.Preparing, now))

	err := suite.repository.Update(ctx, missing)
	suite.Require().Error(err)

	var notFoundErr *errs.ObjectNotFoundError
	suite.Require().ErrorAs(err, &notFoundErr)
}

func (suite *OrderRepositoryIntegrationTestSuite) TestGetDueForDispatch_ReturnsOnlyDueDriverlessOrders() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	due := suite.createTestOrderAt(now.Add(-time.Minute))
	suite.Require().NoError(suite.repository.Add(ctx, due))

	// Retry scheduled in the future, not yet due.
	waiting := suite.createTestOrderAt(now.Add(-time.Minute))
	suite.Require().NoError(waiting.ScheduleDispatchRetry(now.Add(time.Hour)))
	suite.Require().NoError(suite.repository.Add(ctx, waiting))

	// Already has a driver.
	assigned := suite.createTestOrderAt(now.Add(-time.Minute))
	suite.Require().NoError(assigned.AssignDriver(kernel.NewUUID(), now.Add(time.Hour)))
	suite.Require().NoError(suite.repository.Add(ctx, assigned))

	// Terminal.
	cancelled := suite.createTestOrderAt(now.Add(-time.Minute))
	suite.Require().NoError(cancelled.TransitionTo(order.Cancelled, now))
	suite.Require().NoError(suite.repository.Add(ctx, cancelled))

	dueOrders, err := suite.repository.GetDueForDispatch(ctx, now, 10)
	suite.Require().NoError(err)

	suite.Require().Len(dueOrders, 1)
	suite.Equal(due.ID(), dueOrders[0].ID())
}

func (suite *OrderRepositoryIntegrationTestSuite) TestGetDueForDispatch_OrdersByNextAttemptAndHonorsLimit() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	later := suite.createTestOrderAt(now.Add(-time.Minute))
	suite.Require().NoError(suite.repository.Add(ctx, later))

	earlier := suite.createTestOrderAt(now.Add(-2 * time.Hour))
	suite.Require().NoError(suite.repository.Add(ctx, earlier))

	dueOrders, err := suite.repository.GetDueForDispatch(ctx, now, 1)
	suite.Require().NoError(err)

	suite.Require().Len(dueOrders, 1)
	suite.Equal(earlier.ID(), dueOrders[0].ID())
}

func (suite *OrderRepositoryIntegrationTestSuite) TestGetAllActive_ExcludesTerminalOrders() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	pending := suite.createTestOrder()
	suite.Require().NoError(suite.repository.Add(ctx, pending))

	preparing := suite.createTestOrder()
	suite.Require().NoError(preparing.TransitionTo(order.Preparing, now))
	suite.Require().NoError(suite.repository.Add(ctx, preparing))

	cancelled := suite.createTestOrder()
	suite.Require().NoError(cancelled.TransitionTo(order.Cancelled, now))
	suite.Require().NoError(suite.repository.Add(ctx, cancelled))

	active, err := suite.repository.GetAllActive(ctx)
	suite.Require().NoError(err)

	suite.Len(active, 2)
	for _, activeOrder := range active {
		suite.NotEqual(order.Cancelled, activeOrder.Status())
		suite.NotEqual(order.Delivered, activeOrder.Status())
	}
}

// createTestOrder creates a basic pending order with default values.
func (suite *OrderRepositoryIntegrationTestSuite) createTestOrder() *order.Order {
	return suite.createTestOrderAt(time.Now().UTC().Truncate(time.Microsecond))
}

// createTestOrderAt creates a pending order placed at the given time.
func (suite *OrderRepositoryIntegrationTestSuite) createTestOrderAt(createdAt time.Time) *order.Order {
	destination, err := kernel.NewGeoPoint(52.520008, 13.404954)
	suite.Require().NoError(err)

	item, err := order.NewLineItem("flat white", 2, 420)
	suite.Require().NoError(err)

	testOrder, err := order.NewOrder(kernel.NewUUID(), destination, []order.LineItem{item}, createdAt)
	suite.Require().NoError(err)
	return testOrder
}

// assertOrderCount verifies the number of orders in the database.
func (suite *OrderRepositoryIntegrationTestSuite) assertOrderCount(expected int) {
	var count int64
	err := suite.db.Model(&orderrepo.OrderDTO{}).Count(&count).Error
	suite.Require().NoError(err)
	suite.Equal(int64(expected), count)
}

func TestOrderRepositoryIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(OrderRepositoryIntegrationTestSuite))
}
