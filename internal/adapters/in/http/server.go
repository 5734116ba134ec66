// Package http exposes the dispatch engine over a REST API plus a
// server-sent-events stream for live state synchronization. It coordinates
// between HTTP handlers and application use cases.
package http

import (
	"errors"
	"net/http"
	"time"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/application/usecases/queries"
	"dispatch/internal/core/domain/model/assignment"
	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/session"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server routes HTTP requests to the command and query handlers.
type Server struct {
	// Command handlers
	createOrderHandler     commands.CreateOrderCommandHandler
	transitionOrderHandler commands.TransitionOrderCommandHandler
	registerDriverHandler  commands.RegisterDriverCommandHandler
	reportPositionHandler  commands.ReportPositionCommandHandler
	setDriverShiftHandler  commands.SetDriverShiftCommandHandler
	acceptOfferHandler     commands.AcceptOfferCommandHandler
	rejectOfferHandler     commands.RejectOfferCommandHandler

	// Query handlers
	getOrderHandler        queries.GetOrderQueryHandler
	getActiveOrdersHandler queries.GetActiveOrdersQueryHandler
	getAllDriversHandler   queries.GetAllDriversQueryHandler

	// Live stream
	sessions *session.Registry
}

// NewServer creates a new HTTP server with the required command and query handlers.
func NewServer(
	createOrderHandler commands.CreateOrderCommandHandler,
	transitionOrderHandler commands.TransitionOrderCommandHandler,
	registerDriverHandler commands.RegisterDriverCommandHandler,
	reportPositionHandler commands.ReportPositionCommandHandler,
	setDriverShiftHandler commands.SetDriverShiftCommandHandler,
	acceptOfferHandler commands.AcceptOfferCommandHandler,
	rejectOfferHandler commands.RejectOfferCommandHandler,
	getOrderHandler queries.GetOrderQueryHandler,
	getActiveOrdersHandler queries.GetActiveOrdersQueryHandler,
	getAllDriversHandler queries.GetAllDriversQueryHandler,
	sessions *session.Registry,
) *Server {
	return &Server{
		createOrderHandler:     createOrderHandler,
		transitionOrderHandler: transitionOrderHandler,
		registerDriverHandler:  registerDriverHandler,
		reportPositionHandler:  reportPositionHandler,
		setDriverShiftHandler:  setDriverShiftHandler,
		acceptOfferHandler:     acceptOfferHandler,
		rejectOfferHandler:     rejectOfferHandler,
		getOrderHandler:        getOrderHandler,
		getActiveOrdersHandler: getActiveOrdersHandler,
		getAllDriversHandler:   getAllDriversHandler,
		sessions:               sessions,
	}
}

// RegisterRoutes attaches every endpoint to the echo instance.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api/v1")

	api.POST("/orders", s.CreateOrder)
	api.GET("/orders/active", s.GetActiveOrders)
	api.GET("/orders/:orderID", s.GetOrder)
	api.POST("/orders/:orderID/status", s.TransitionOrder)

	api.POST("/drivers", s.RegisterDriver)
	api.GET("/drivers", s.GetDrivers)
	api.POST("/drivers/:driverID/position", s.ReportPosition)
	api.POST("/drivers/:driverID/shift", s.SetDriverShift)

	api.POST("/offers/:offerID/accept", s.AcceptOffer)
	api.POST("/offers/:offerID/reject", s.RejectOffer)

	api.GET("/stream", s.Stream)

	e.GET("/health", s.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// ErrorResponse is the JSON error body for every failed request.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// CreateOrderRequest is the request body for POST /api/v1/orders.
type CreateOrderRequest struct {
	Destination GeoPointBody   `json:"destination"`
	Items       []LineItemBody `json:"items"`
}

// GeoPointBody is a WGS84 coordinate in request and response bodies.
type GeoPointBody struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LineItemBody is one order line item in request and response bodies.
type LineItemBody struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// CreatedResponse returns the identifier of a newly created resource.
type CreatedResponse struct {
	ID string `json:"id"`
}

// CreateOrder handles POST /api/v1/orders.
func (s *Server) CreateOrder(ctx echo.Context) error {
	var body CreateOrderRequest
	if err := ctx.Bind(&body); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	destination, err := kernel.NewGeoPoint(body.Destination.Lat, body.Destination.Lon)
	if err != nil {
		return badRequest(ctx, "Invalid destination: "+err.Error())
	}

	items := make([]commands.LineItemSpec, 0, len(body.Items))
	for _, item := range body.Items {
		items = append(items, commands.LineItemSpec{
			Name:       item.Name,
			Quantity:   item.Quantity,
			PriceCents: item.PriceCents,
		})
	}

	orderID := kernel.NewUUID()
	cmd, err := commands.NewCreateOrderCommand(orderID, destination, items)
	if err != nil {
		return badRequest(ctx, "Invalid order data: "+err.Error())
	}

	if err = s.createOrderHandler.Handle(ctx.Request().Context(), cmd); err != nil {
		return writeError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, CreatedResponse{ID: orderID.String()})
}

// TransitionOrderRequest is the request body for POST /api/v1/orders/:orderID/status.
// ExpectedVersion is the order version the client last observed; a mismatch
// is rejected with 409 and the client should refetch.
type TransitionOrderRequest struct {
	Status          string `json:"status"`
	ExpectedVersion int64  `json:"expected_version"`
}

// TransitionOrder handles POST /api/v1/orders/:orderID/status.
func (s *Server) TransitionOrder(ctx echo.Context) error {
	orderID, err := kernel.UUIDFromString(ctx.Param("orderID"))
	if err != nil {
		return badRequest(ctx, "Invalid order id")
	}

	var body TransitionOrderRequest
	if err = ctx.Bind(&body); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	status, err := order.StatusFromString(body.Status)
	if err != nil {
		return badRequest(ctx, "Invalid status: "+err.Error())
	}

	cmd, err := commands.NewTransitionOrderCommand(orderID, body.ExpectedVersion, status)
	if err != nil {
		return badRequest(ctx, "Invalid transition data: "+err.Error())
	}

	if err = s.transitionOrderHandler.Handle(ctx.Request().Context(), cmd); err != nil {
		return writeError(ctx, err)
	}

	return ctx.NoContent(http.StatusNoContent)
}

// OrderResponse is the order read model returned by the order endpoints.
type OrderResponse struct {
	ID                  string         `json:"id"`
	Status              string         `json:"status"`
	Destination         GeoPointBody   `json:"destination"`
	Items               []LineItemBody `json:"items"`
	AssignedDriverID    *string        `json:"assigned_driver_id,omitempty"`
	Version             int64          `json:"version"`
	CreatedAt           time.Time      `json:"created_at"`
	EstimatedDeliveryAt *time.Time     `json:"estimated_delivery_at,omitempty"`
	DeliveredAt         *time.Time     `json:"delivered_at,omitempty"`
	DispatchAttempts    int            `json:"dispatch_attempts"`
	NextDispatchAt      time.Time      `json:"next_dispatch_at"`
}

// GetOrder handles GET /api/v1/orders/:orderID.
func (s *Server) GetOrder(ctx echo.Context) error {
	orderID, err := kernel.UUIDFromString(ctx.Param("orderID"))
	if err != nil {
		return badRequest(ctx, "Invalid order id")
	}

	query, err := queries.NewGetOrderQuery(orderID)
	if err != nil {
		return badRequest(ctx, "Invalid order id")
	}

	result, err := s.getOrderHandler.Handle(ctx.Request().Context(), query)
	if err != nil {
		return writeError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, toOrderResponse(result))
}

// GetActiveOrders handles GET /api/v1/orders/active.
func (s *Server) GetActiveOrders(ctx echo.Context) error {
	query := queries.NewGetActiveOrdersQuery()

	results, err := s.getActiveOrdersHandler.Handle(ctx.Request().Context(), query)
	if err != nil {
		return writeError(ctx, err)
	}

	response := make([]OrderResponse, 0, len(results))
	for _, result := range results {
		response = append(response, toOrderResponse(result))
	}

	return ctx.JSON(http.StatusOK, response)
}

func toOrderResponse(result queries.GetOrderQueryResponse) OrderResponse {
	items := make([]LineItemBody, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, LineItemBody(item))
	}

	response := OrderResponse{
		ID:     result.ID.String(),
		Status: result.Status.String(),
		Destination: GeoPointBody{
			Lat: result.Destination.Lat(),
			Lon: result.Destination.Lon(),
		},
		Items:               items,
		Version:             result.Version,
		CreatedAt:           result.CreatedAt,
		EstimatedDeliveryAt: result.EstimatedDeliveryAt,
		DeliveredAt:         result.DeliveredAt,
		DispatchAttempts:    result.DispatchAttempts,
		NextDispatchAt:      result.NextDispatchAt,
	}
	if result.AssignedDriverID != nil {
		driverID := result.AssignedDriverID.String()
		response.AssignedDriverID = &driverID
	}

	return response
}

// RegisterDriverRequest is the request body for POST /api/v1/drivers.
type RegisterDriverRequest struct {
	Name    string `json:"name"`
	Vehicle string `json:"vehicle"`
}

// RegisterDriver handles POST /api/v1/drivers.
func (s *Server) RegisterDriver(ctx echo.Context) error {
	var body RegisterDriverRequest
	if err := ctx.Bind(&body); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	vehicle, err := driver.VehicleClassFromString(body.Vehicle)
	if err != nil {
		return badRequest(ctx, "Invalid vehicle: "+err.Error())
	}

	driverID := kernel.NewUUID()
	cmd, err := commands.NewRegisterDriverCommand(driverID, body.Name, vehicle)
	if err != nil {
		return badRequest(ctx, "Invalid driver data: "+err.Error())
	}

	if err = s.registerDriverHandler.Handle(ctx.Request().Context(), cmd); err != nil {
		return writeError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, CreatedResponse{ID: driverID.String()})
}

// DriverResponse is the driver read model returned by GET /api/v1/drivers.
type DriverResponse struct {
	ID           string                  `json:"id"`
	Name         string                  `json:"name"`
	Vehicle      string                  `json:"vehicle"`
	Availability string                  `json:"availability"`
	Position     *DriverPositionResponse `json:"position,omitempty"`
	Version      int64                   `json:"version"`
}

// DriverPositionResponse is the last-known position in the driver read model.
type DriverPositionResponse struct {
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	RecordedAt time.Time `json:"recorded_at"`
}

// GetDrivers handles GET /api/v1/drivers.
func (s *Server) GetDrivers(ctx echo.Context) error {
	query := queries.NewGetAllDriversQuery()

	results, err := s.getAllDriversHandler.Handle(ctx.Request().Context(), query)
	if err != nil {
		return writeError(ctx, err)
	}

	response := make([]DriverResponse, 0, len(results))
	for _, result := range results {
		driverResponse := DriverResponse{
			ID:           result.ID.String(),
			Name:         result.Name,
			Vehicle:      result.Vehicle.String(),
			Availability: result.Availability.String(),
			Version:      result.Version,
		}
		if result.Position != nil {
			driverResponse.Position = &DriverPositionResponse{
				Lat:        result.Position.Point.Lat(),
				Lon:        result.Position.Point.Lon(),
				RecordedAt: result.Position.RecordedAt,
			}
		}
		response = append(response, driverResponse)
	}

	return ctx.JSON(http.StatusOK, response)
}

// ReportPositionRequest is the request body for POST /api/v1/drivers/:driverID/position.
// RecordedAt is the device-side report time used for last-writer-wins
// ordering of concurrent reports.
type ReportPositionRequest struct {
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ReportPosition handles POST /api/v1/drivers/:driverID/position.
// A stale report is accepted and dropped, not an error.
func (s *Server) ReportPosition(ctx echo.Context) error {
	driverID, err := kernel.UUIDFromString(ctx.Param("driverID"))
	if err != nil {
		return badRequest(ctx, "Invalid driver id")
	}

	var body ReportPositionRequest
	if err = ctx.Bind(&body); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	point, err := kernel.NewGeoPoint(body.Lat, body.Lon)
	if err != nil {
		return badRequest(ctx, "Invalid position: "+err.Error())
	}

	cmd, err := commands.NewReportPositionCommand(driverID, point, body.RecordedAt)
	if err != nil {
		return badRequest(ctx, "Invalid position report: "+err.Error())
	}

	if err = s.reportPositionHandler.Handle(ctx.Request().Context(), cmd); err != nil {
		return writeError(ctx, err)
	}

	return ctx.NoContent(http.StatusAccepted)
}

// SetDriverShiftRequest is the request body for POST /api/v1/drivers/:driverID/shift.
type SetDriverShiftRequest struct {
	Online bool `json:"online"`
}

// SetDriverShift handles POST /api/v1/drivers/:driverID/shift.
func (s *Server) SetDriverShift(ctx echo.Context) error {
	driverID, err := kernel.UUIDFromString(ctx.Param("driverID"))
	if err != nil {
		return badRequest(ctx, "Invalid driver id")
	}

	var body SetDriverShiftRequest
	if err = ctx.Bind(&body); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	cmd, err := commands.NewSetDriverShiftCommand(driverID, body.Online)
	if err != nil {
		return badRequest(ctx, "Invalid shift data: "+err.Error())
	}

	if err = s.setDriverShiftHandler.Handle(ctx.Request().Context(), cmd); err != nil {
		return writeError(ctx, err)
	}

	return ctx.NoContent(http.StatusNoContent)
}

// OfferResponseRequest is the request body for the offer accept and reject
// endpoints. The driver id must match the offer's addressee.
type OfferResponseRequest struct {
	DriverID string `json:"driver_id"`
}

// AcceptOffer handles POST /api/v1/offers/:offerID/accept.
func (s *Server) AcceptOffer(ctx echo.Context) error {
	offerID, driverID, err := s.bindOfferResponse(ctx)
	if err != nil {
		return badRequest(ctx, err.Error())
	}

	cmd, err := commands.NewAcceptOfferCommand(offerID, driverID)
	if err != nil {
		return badRequest(ctx, "Invalid offer response: "+err.Error())
	}

	if err = s.acceptOfferHandler.Handle(ctx.Request().Context(), cmd); err != nil {
		return writeError(ctx, err)
	}

	return ctx.NoContent(http.StatusNoContent)
}

// RejectOffer handles POST /api/v1/offers/:offerID/reject.
func (s *Server) RejectOffer(ctx echo.Context) error {
	offerID, driverID, err := s.bindOfferResponse(ctx)
	if err != nil {
		return badRequest(ctx, err.Error())
	}

	cmd, err := commands.NewRejectOfferCommand(offerID, driverID)
	if err != nil {
		return badRequest(ctx, "Invalid offer response: "+err.Error())
	}

	if err = s.rejectOfferHandler.Handle(ctx.Request().Context(), cmd); err != nil {
		return writeError(ctx, err)
	}

	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) bindOfferResponse(ctx echo.Context) (kernel.UUID, kernel.UUID, error) {
	offerID, err := kernel.UUIDFromString(ctx.Param("offerID"))
	if err != nil {
		return kernel.UUID{}, kernel.UUID{}, errors.New("invalid offer id")
	}

	var body OfferResponseRequest
	if err = ctx.Bind(&body); err != nil {
		return kernel.UUID{}, kernel.UUID{}, errors.New("invalid request body")
	}

	driverID, err := kernel.UUIDFromString(body.DriverID)
	if err != nil {
		return kernel.UUID{}, kernel.UUID{}, errors.New("invalid driver id")
	}

	return offerID, driverID, nil
}

// Health handles GET /health.
func (s *Server) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// badRequest writes a 400 with the given message.
func badRequest(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusBadRequest, ErrorResponse{
		Code:    http.StatusBadRequest,
		Message: message,
	})
}

// writeError maps application and domain errors to HTTP status codes.
func writeError(ctx echo.Context, err error) error {
	var notFound *errs.ObjectNotFoundError

	code := http.StatusInternalServerError
	switch {
	case errors.As(err, &notFound):
		code = http.StatusNotFound
	case errors.Is(err, errs.ErrConcurrencyConflict):
		code = http.StatusConflict
	case errors.Is(err, commands.ErrOfferNotAddressedToDriver):
		code = http.StatusForbidden
	case errors.Is(err, assignment.ErrOfferNotOpen),
		errors.Is(err, assignment.ErrOfferExpired),
		errors.Is(err, driver.ErrDriverNotAvailable):
		code = http.StatusConflict
	case errors.Is(err, order.ErrInvalidTransition):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrValueIsInvalid),
		errors.Is(err, errs.ErrValueIsRequired),
		errors.Is(err, errs.ErrValueIsOutOfRange):
		code = http.StatusBadRequest
	}

	return ctx.JSON(code, ErrorResponse{Code: code, Message: err.Error()})
}
