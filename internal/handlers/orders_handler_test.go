package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-orderlines/internal/details"
	"github.com/imrishuroy/go-orderlines/internal/events"
	"github.com/imrishuroy/go-orderlines/internal/gateway"
	"github.com/imrishuroy/go-orderlines/internal/idempotency"
	"github.com/imrishuroy/go-orderlines/internal/orders/sqlite"
	"github.com/imrishuroy/go-orderlines/internal/pricing"
	"github.com/imrishuroy/go-orderlines/internal/service"
)

type products map[int64]gateway.Product

func (p products) ResolveProduct(_ context.Context, id int64) (gateway.Product, error) {
	if prod, ok := p[id]; ok {
		return prod, nil
	}
	return gateway.Product{}, gateway.ErrNotFound
}

type addresses struct{}

func (addresses) ResolveAddress(_ context.Context, _, addressID int64) (gateway.Address, error) {
	return gateway.Address{ID: addressID, City: "Springfield"}, nil
}

type shipments struct{}

func (shipments) ResolveShipment(context.Context, int64) (gateway.Shipment, error) {
	return gateway.Shipment{}, errors.New("connection refused")
}

type failingDetails struct{ err error }

func (f failingDetails) GetOrderDetails(context.Context, int64) ([]details.OrderDetail, error) {
	return nil, f.err
}

// memIdempotency is an in-memory IdempotencyStore.
type memIdempotency struct {
	mu      sync.Mutex
	records map[string]*idempotency.Record
}

func (m *memIdempotency) Begin(_ context.Context, key, hash string) (*idempotency.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		m.records[key] = &idempotency.Record{Key: key, RequestHash: hash, Status: idempotency.StatusInProgress}
		return nil, nil
	}
	if rec.RequestHash != hash {
		return rec, idempotency.ErrKeyReused
	}
	cp := *rec
	return &cp, nil
}

func (m *memIdempotency) MarkDone(_ context.Context, key string, orderNumber int64, body string, status int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[key]
	rec.Status = idempotency.StatusDone
	rec.OrderNumber = orderNumber
	rec.ResponseBody = body
	rec.ResponseStatus = status
	return nil
}

func (m *memIdempotency) MarkFailed(_ context.Context, key, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key].Status = idempotency.StatusFailed
	m.records[key].Note = note
	return nil
}

type testEnv struct {
	router *gin.Engine
	idem   *memIdempotency
}

func setupRouter(t *testing.T, detailsOverride DetailService) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	catalog := products{
		1: {ID: 1, Name: "Keyboard", Price: 25},
		2: {ID: 2, Name: "Mouse", Price: 10},
		3: {ID: 3, Name: "Monitor", Price: 40},
	}
	guard := gateway.Guard{Timeout: time.Second, Policy: gateway.FailOpen}
	svc := service.NewOrderService(store, pricing.NewEngine(catalog, guard), events.Noop{})

	var detailSvc DetailService = details.NewAggregator(store, addresses{}, catalog, shipments{}, guard, 2)
	if detailsOverride != nil {
		detailSvc = detailsOverride
	}

	idem := &memIdempotency{records: map[string]*idempotency.Record{}}
	r := gin.New()
	r.Use(RequestID())
	RegisterOrdersRoutes(r, HandlerConfig{Orders: svc, Details: detailSvc, Idempotency: idem})
	return &testEnv{router: r, idem: idem}
}

func (e *testEnv) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

const scenarioOrder = `{
	"accountId": 1,
	"orderDate": "2018-09-12T00:00:00",
	"shippingAddressId": 1,
	"orderLineItems": [
		{"productId": 1, "quantity": 3},
		{"productId": 3, "quantity": 8, "shipmentId": 4}
	]
}`

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestCreateOrder(t *testing.T) {
	env := setupRouter(t, nil)

	w := env.do(http.MethodPost, "/orders", scenarioOrder)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "/orders/1", w.Header().Get("Location"))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	got := decode[map[string]any](t, w)
	assert.Equal(t, float64(1), got["orderNumber"])
	assert.Equal(t, 395.0, got["totalPrice"])
	assert.Equal(t, "2018-09-12T00:00:00", got["orderDate"])
	lines := got["orderLineItems"].([]any)
	require.Len(t, lines, 2)
	first := lines[0].(map[string]any)
	assert.Equal(t, 25.0, first["price"])
	assert.Equal(t, 75.0, first["totalPrice"])
}

func TestCreateOrder_BadRequests(t *testing.T) {
	env := setupRouter(t, nil)

	w := env.do(http.MethodPost, "/orders", `{"accountId":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_request_body")

	w = env.do(http.MethodPost, "/orders", `{"accountId":1,"orderDate":"yesterday"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_failed")
	assert.Contains(t, w.Body.String(), "orderDate")
}

func TestCreateOrder_IdempotentReplay(t *testing.T) {
	env := setupRouter(t, nil)

	first := env.do(http.MethodPost, "/orders", scenarioOrder, IdempotencyKeyHeader, "key-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := env.do(http.MethodPost, "/orders", scenarioOrder, IdempotencyKeyHeader, "key-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	list := env.do(http.MethodGet, "/orders", "")
	require.Equal(t, http.StatusOK, list.Code)
	assert.Len(t, decode[[]map[string]any](t, list), 1)

	reused := env.do(http.MethodPost, "/orders", `{"accountId":2,"orderDate":"2018-09-12"}`, IdempotencyKeyHeader, "key-1")
	assert.Equal(t, http.StatusUnprocessableEntity, reused.Code)
}

func TestCreateOrder_InProgressKey(t *testing.T) {
	env := setupRouter(t, nil)
	hash := idempotency.HashRequest([]byte(scenarioOrder))
	env.idem.records["busy"] = &idempotency.Record{Key: "busy", RequestHash: hash, Status: idempotency.StatusInProgress}

	w := env.do(http.MethodPost, "/orders", scenarioOrder, IdempotencyKeyHeader, "busy")
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestListOrders(t *testing.T) {
	env := setupRouter(t, nil)

	w := env.do(http.MethodGet, "/orders", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/orders", scenarioOrder).Code)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/orders", `{"accountId":2,"orderDate":"2018-09-13"}`).Code)

	w = env.do(http.MethodGet, "/orders", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 2)

	w = env.do(http.MethodGet, "/orders?accountId=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[[]map[string]any](t, w)
	require.Len(t, got, 1)
	assert.Equal(t, float64(2), got[0]["accountId"])

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/orders?accountId=9", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/orders?accountId=abc", "").Code)
}

func TestOrderDetails(t *testing.T) {
	env := setupRouter(t, nil)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/orders/1", "").Code)

	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/orders", scenarioOrder).Code)

	w := env.do(http.MethodGet, "/orders/1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := decode[[]details.OrderDetail](t, w)
	require.Len(t, got, 1)
	assert.Equal(t, 395.0, got[0].TotalPrice)
	assert.Equal(t, "Springfield", got[0].ShippingAddress.City)
	assert.Equal(t, []details.OrderLineSummary{{ProductName: "Keyboard", Quantity: 3}, {ProductName: "Monitor", Quantity: 8}}, got[0].LineItems)
	require.Len(t, got[0].Shipments, 1)
	assert.Equal(t, []details.OrderLineSummary{{ProductName: "Monitor", Quantity: 8}}, got[0].Shipments[0].LineItems)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/orders/abc", "").Code)
}

func TestOrderDetails_ErrorMapping(t *testing.T) {
	env := setupRouter(t, failingDetails{err: errors.New("disk I/O error")})
	assert.Equal(t, http.StatusInternalServerError, env.do(http.MethodGet, "/orders/1", "").Code)

	env = setupRouter(t, failingDetails{err: fmt.Errorf("order 1: %w", gateway.ErrUnavailable)})
	assert.Equal(t, http.StatusBadGateway, env.do(http.MethodGet, "/orders/1", "").Code)
}

func TestUpdateOrder(t *testing.T) {
	env := setupRouter(t, nil)

	w := env.do(http.MethodPut, "/orders/42", scenarioOrder)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/orders", "").Code)

	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/orders", scenarioOrder).Code)

	w = env.do(http.MethodPut, "/orders/1", `{"orderNumber":99,"accountId":1,"orderDate":"2018-09-14","orderLineItems":[{"productId":2,"quantity":5}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[map[string]any](t, w)
	assert.Equal(t, float64(1), got["orderNumber"])
	assert.Equal(t, 50.0, got["totalPrice"])
}

func TestDeleteOrder(t *testing.T) {
	env := setupRouter(t, nil)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/orders/1", "").Code)

	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/orders", scenarioOrder).Code)

	w := env.do(http.MethodDelete, "/orders/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 395.0, decode[map[string]any](t, w)["totalPrice"])

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/orders", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/orders/1/lines", "").Code)
}

func TestLineItemRoutes(t *testing.T) {
	env := setupRouter(t, nil)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/orders/1/lines", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, "/orders/1/lines", `{"productId":2,"quantity":1}`).Code)

	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/orders", scenarioOrder).Code)

	w := env.do(http.MethodPost, "/orders/1/lines", `{"productId":2,"quantity":4}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[map[string]any](t, w)
	assert.Equal(t, 40.0, created["totalPrice"])
	lineID := int64(created["id"].(float64))
	assert.NotZero(t, lineID)

	w = env.do(http.MethodGet, "/orders/1/lines", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 3)

	w = env.do(http.MethodPut, "/orders/1/lines/"+itoa(lineID), `{"productId":1,"quantity":2}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 50.0, decode[map[string]any](t, w)["totalPrice"])

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPut, "/orders/1/lines/999", `{"productId":1,"quantity":2}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPut, "/orders/1/lines/abc", `{"productId":1,"quantity":2}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/orders/1/lines", `{"productId":1,"quantity":0}`).Code)

	w = env.do(http.MethodDelete, "/orders/1/lines/"+itoa(lineID), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(lineID), decode[map[string]any](t, w)["id"])

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/orders/1/lines/"+itoa(lineID), "").Code)
}

func TestRequestID_Echoed(t *testing.T) {
	env := setupRouter(t, nil)

	w := env.do(http.MethodGet, "/orders", "", RequestIDHeader, "abc-123")
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
