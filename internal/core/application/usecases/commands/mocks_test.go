package commands_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/assignment"
	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/event"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/core/ports"
	"dispatch/internal/geoindex"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOrderRepository struct{ mock.Mock }

func (m *MockOrderRepository) Add(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}
func (m *MockOrderRepository) Update(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}
func (m *MockOrderRepository) Get(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}
func (m *MockOrderRepository) GetDueForDispatch(ctx context.Context, now time.Time, limit int) ([]*order.Order, error) {
	args := m.Called(ctx, now, limit)
	orders, _ := args.Get(0).([]*order.Order)
	return orders, args.Error(1)
}
func (m *MockOrderRepository) GetAllActive(_ context.Context) ([]*order.Order, error) {
	return nil, errors.New("not implemented in mock")
}

type MockDriverRepository struct{ mock.Mock }

func (m *MockDriverRepository) Add(ctx context.Context, d *driver.Driver) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}
func (m *MockDriverRepository) Update(ctx context.Context, d *driver.Driver) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}
func (m *MockDriverRepository) UpdatePosition(ctx context.Context, d *driver.Driver) (bool, error) {
	args := m.Called(ctx, d)
	return args.Bool(0), args.Error(1)
}
func (m *MockDriverRepository) Get(ctx context.Context, id kernel.UUID) (*driver.Driver, error) {
	args := m.Called(ctx, id)
	d, _ := args.Get(0).(*driver.Driver)
	return d, args.Error(1)
}
func (m *MockDriverRepository) GetAll(_ context.Context) ([]*driver.Driver, error) {
	return nil, errors.New("not implemented in mock")
}

type MockAssignmentRepository struct{ mock.Mock }

func (m *MockAssignmentRepository) Add(ctx context.Context, a *assignment.Assignment) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}
func (m *MockAssignmentRepository) Update(ctx context.Context, a *assignment.Assignment) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}
func (m *MockAssignmentRepository) Get(ctx context.Context, id kernel.UUID) (*assignment.Assignment, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*assignment.Assignment)
	return a, args.Error(1)
}
func (m *MockAssignmentRepository) GetOpenByOrder(ctx context.Context, orderID kernel.UUID) (*assignment.Assignment, error) {
	args := m.Called(ctx, orderID)
	a, _ := args.Get(0).(*assignment.Assignment)
	return a, args.Error(1)
}
func (m *MockAssignmentRepository) GetOpenByDriver(ctx context.Context, driverID kernel.UUID) (*assignment.Assignment, error) {
	args := m.Called(ctx, driverID)
	a, _ := args.Get(0).(*assignment.Assignment)
	return a, args.Error(1)
}
func (m *MockAssignmentRepository) GetOpen(_ context.Context) ([]*assignment.Assignment, error) {
	return nil, errors.New("not implemented in mock")
}
func (m *MockAssignmentRepository) GetExpiredOffers(ctx context.Context, now time.Time, limit int) ([]*assignment.Assignment, error) {
	args := m.Called(ctx, now, limit)
	offers, _ := args.Get(0).([]*assignment.Assignment)
	return offers, args.Error(1)
}
func (m *MockAssignmentRepository) GetAttemptedDriverIDs(ctx context.Context, orderID kernel.UUID) ([]kernel.UUID, error) {
	args := m.Called(ctx, orderID)
	ids, _ := args.Get(0).([]kernel.UUID)
	return ids, args.Error(1)
}

type MockEventRepository struct{ mock.Mock }

func (m *MockEventRepository) Append(ctx context.Context, events ...event.Event) ([]event.Event, error) {
	args := m.Called(ctx, events)
	committed, _ := args.Get(0).([]event.Event)
	if committed == nil && args.Error(1) == nil {
		// echo inputs with sequences so handlers can fan out something real
		committed = make([]event.Event, 0, len(events))
		for i, e := range events {
			e.Sequence = int64(i + 1)
			committed = append(committed, e)
		}
	}
	return committed, args.Error(1)
}
func (m *MockEventRepository) ReadSince(_ context.Context, _ int64) ([]event.Event, error) {
	return nil, errors.New("not implemented in mock")
}
func (m *MockEventRepository) ReadRange(_ context.Context, _, _ int64) ([]event.Event, error) {
	return nil, errors.New("not implemented in mock")
}
func (m *MockEventRepository) Head(_ context.Context) (int64, error) {
	return 0, errors.New("not implemented in mock")
}
func (m *MockEventRepository) PruneToCount(_ context.Context, _ int) (int64, error) {
	return 0, errors.New("not implemented in mock")
}

type MockUoW struct{ mock.Mock }

func (m *MockUoW) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockUoW) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockUoW) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockUoW) OrderRepository() ports.OrderRepository {
	args := m.Called()
	return args.Get(0).(ports.OrderRepository)
}
func (m *MockUoW) DriverRepository() ports.DriverRepository {
	args := m.Called()
	return args.Get(0).(ports.DriverRepository)
}
func (m *MockUoW) AssignmentRepository() ports.AssignmentRepository {
	args := m.Called()
	return args.Get(0).(ports.AssignmentRepository)
}
func (m *MockUoW) EventRepository() ports.EventRepository {
	args := m.Called()
	return args.Get(0).(ports.EventRepository)
}

type MockUoWFactory struct{ mock.Mock }

func (m *MockUoWFactory) Create() commands.UoW {
	args := m.Called()
	return args.Get(0).(commands.UoW)
}

type MockOrderUoWFactory struct{ mock.Mock }

func (m *MockOrderUoWFactory) Create() commands.OrderUoW {
	args := m.Called()
	return args.Get(0).(commands.OrderUoW)
}

type MockDriverUoWFactory struct{ mock.Mock }

func (m *MockDriverUoWFactory) Create() commands.DriverUoW {
	args := m.Called()
	return args.Get(0).(commands.DriverUoW)
}

type MockEventPublisher struct{ mock.Mock }

func (m *MockEventPublisher) Publish(ctx context.Context, events ...event.Event) {
	m.Called(ctx, events)
}

type MockDriverIndex struct{ mock.Mock }

func (m *MockDriverIndex) Upsert(driverID kernel.UUID, point kernel.GeoPoint, recordedAt time.Time, availability driver.Availability) bool {
	args := m.Called(driverID, point, recordedAt, availability)
	return args.Bool(0)
}
func (m *MockDriverIndex) SetAvailability(driverID kernel.UUID, availability driver.Availability) bool {
	args := m.Called(driverID, availability)
	return args.Bool(0)
}
func (m *MockDriverIndex) Remove(driverID kernel.UUID) bool {
	args := m.Called(driverID)
	return args.Bool(0)
}
func (m *MockDriverIndex) QueryNearest(origin kernel.GeoPoint, radiusMeters float64, limit int, filter driver.Availability) []geoindex.Candidate {
	args := m.Called(origin, radiusMeters, limit, filter)
	candidates, _ := args.Get(0).([]geoindex.Candidate)
	return candidates
}

// Shared fixtures.

func testGeoPoint(t *testing.T, lat, lon float64) kernel.GeoPoint {
	t.Helper()
	point, err := kernel.NewGeoPoint(lat, lon)
	require.NoError(t, err)
	return point
}

func testLineItems() []commands.LineItemSpec {
	return []commands.LineItemSpec{{Name: "espresso", Quantity: 2, PriceCents: 350}}
}

func testDomainItems(t *testing.T) []order.LineItem {
	t.Helper()
	item, err := order.NewLineItem("espresso", 2, 350)
	require.NoError(t, err)
	return []order.LineItem{item}
}

func newPendingOrder(t *testing.T, createdAt time.Time) *order.Order {
	t.Helper()
	o, err := order.NewOrder(kernel.NewUUID(), testGeoPoint(t, 52.52, 13.405), testDomainItems(t), createdAt)
	require.NoError(t, err)
	return o
}

func newDriverWithPosition(t *testing.T, availability driver.Availability, recordedAt time.Time) *driver.Driver {
	t.Helper()
	position, err := driver.NewPosition(testGeoPoint(t, 52.521, 13.406), recordedAt)
	require.NoError(t, err)
	d, err := driver.RestoreDriver(kernel.NewUUID(), "Nora", driver.Bicycle, availability, position, 2)
	require.NoError(t, err)
	return d
}

func newOfferedAssignment(t *testing.T, orderID, driverID kernel.UUID, offeredAt time.Time) *assignment.Assignment {
	t.Helper()
	a, err := assignment.NewAssignment(kernel.NewUUID(), orderID, driverID, offeredAt, offeredAt.Add(30*time.Second))
	require.NoError(t, err)
	return a
}

func newAcceptedAssignment(t *testing.T, orderID, driverID kernel.UUID, offeredAt time.Time) *assignment.Assignment {
	t.Helper()
	a := newOfferedAssignment(t, orderID, driverID, offeredAt)
	require.NoError(t, a.Accept(offeredAt.Add(time.Second)))
	return a
}

func testPlanner(t *testing.T) services.DispatchPlanner {
	t.Helper()
	planner, err := services.NewDispatchPlanner(services.PlannerSettings{
		BaseRadiusMeters: 1000,
		MaxRadiusMeters:  8000,
		OfferTimeout:     30 * time.Second,
		RetryBackoffBase: 5 * time.Second,
		RetryBackoffCap:  2 * time.Minute,
	})
	require.NoError(t, err)
	return planner
}
