package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SscSPs/funds_transfer_app/internal/apperrors"
	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	portssvc "github.com/SscSPs/funds_transfer_app/internal/core/ports/services"
	"github.com/SscSPs/funds_transfer_app/internal/core/services"
	"github.com/SscSPs/funds_transfer_app/internal/dto"
	"github.com/SscSPs/funds_transfer_app/internal/handlers"
	"github.com/SscSPs/funds_transfer_app/internal/platform/config"
	"github.com/SscSPs/funds_transfer_app/internal/repositories/database/memory"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// --- Test Suite ---
type HandlersTestSuite struct {
	suite.Suite
	router    *gin.Engine
	container *portssvc.ServiceContainer
}

func (suite *HandlersTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		LedgerConflictRetries: 3,
		RecoveryStaleAfter:    time.Minute,
		RecoveryBatchSize:     10,
	}
	suite.container = services.NewServiceContainer(cfg, memory.NewRepositoryProvider(), services.Dependencies{})
	suite.router = gin.New()
	handlers.RegisterRoutes(suite.router, suite.container, handlers.RouteOptions{})
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func (suite *HandlersTestSuite) request(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	var req *http.Request
	if reader != nil {
		req = httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *HandlersTestSuite) decode(w *httptest.ResponseRecorder, out any) {
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

// openAccount opens, activates and funds an account through the ledger endpoints.
func (suite *HandlersTestSuite) openAccount(balance string) string {
	w := suite.request(http.MethodPost, "/api/v1/ledger/accounts", gin.H{"ownerID": "cust-1", "currencyCode": "USD"}, nil)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var acc dto.AccountResponse
	suite.decode(w, &acc)
	suite.Equal(domain.AccountPending, acc.Status)

	w = suite.request(http.MethodPatch, "/api/v1/ledger/accounts/"+acc.AccountID+"/status", gin.H{"status": "ACTIVE"}, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	if !decimal.RequireFromString(balance).IsPositive() {
		return acc.AccountID
	}
	w = suite.request(http.MethodPost, "/api/v1/ledger/accounts/"+acc.AccountID+"/credit", gin.H{
		"amount":        balance,
		"correlationID": "deposit-" + acc.AccountID,
		"reason":        domain.ReasonDeposit,
	}, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	return acc.AccountID
}

func (suite *HandlersTestSuite) balanceOf(accountID string) decimal.Decimal {
	w := suite.request(http.MethodGet, "/api/v1/ledger/accounts/"+accountID, nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var acc dto.AccountResponse
	suite.decode(w, &acc)
	return acc.Balance
}

func transferBody(src, dst, amount string) gin.H {
	return gin.H{
		"sourceAccountID":      src,
		"destinationAccountID": dst,
		"amount":               amount,
		"currencyCode":         "USD",
		"description":          "rent",
	}
}

// --- Test Cases ---

func (suite *HandlersTestSuite) TestCreateTransfer_CompletedThenReplayed() {
	src := suite.openAccount("1000.00")
	dst := suite.openAccount("500.00")
	headers := map[string]string{handlers.IdempotencyKeyHeader: "key-1"}

	w := suite.request(http.MethodPost, "/api/v1/transfers", transferBody(src, dst, "100.00"), headers)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var first dto.TransferResult
	suite.decode(w, &first)
	suite.Equal(domain.TransactionCompleted, first.Status)
	suite.False(first.Replayed)
	suite.NotEmpty(first.ReferenceNumber)

	w = suite.request(http.MethodPost, "/api/v1/transfers", transferBody(src, dst, "100.00"), headers)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var replay dto.TransferResult
	suite.decode(w, &replay)
	suite.Equal(first.TransactionID, replay.TransactionID)
	suite.True(replay.Replayed)

	suite.True(decimal.RequireFromString("900").Equal(suite.balanceOf(src)))
	suite.True(decimal.RequireFromString("600").Equal(suite.balanceOf(dst)))
}

func (suite *HandlersTestSuite) TestCreateTransfer_KeyFromBody() {
	src := suite.openAccount("100.00")
	dst := suite.openAccount("0")

	body := transferBody(src, dst, "10")
	body["idempotencyKey"] = "body-key"
	w := suite.request(http.MethodPost, "/api/v1/transfers", body, nil)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var result dto.TransferResult
	suite.decode(w, &result)
	w = suite.request(http.MethodGet, "/api/v1/transfers/"+result.TransactionID, nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var txn dto.TransferResponse
	suite.decode(w, &txn)
	suite.Equal("rent", txn.Description)
	suite.Equal(domain.TransactionTypeTransfer, txn.Type)
}

func (suite *HandlersTestSuite) TestCreateTransfer_InsufficientFundsIsUnprocessable() {
	src := suite.openAccount("50.00")
	dst := suite.openAccount("0")

	w := suite.request(http.MethodPost, "/api/v1/transfers", transferBody(src, dst, "100.00"),
		map[string]string{handlers.IdempotencyKeyHeader: "key-2"})
	suite.Require().Equal(http.StatusUnprocessableEntity, w.Code, w.Body.String())

	var result dto.TransferResult
	suite.decode(w, &result)
	suite.Equal(domain.TransactionFailed, result.Status)
	suite.Equal("insufficient funds in source account", result.FailureReason)
	suite.True(decimal.RequireFromString("50").Equal(suite.balanceOf(src)))
}

func (suite *HandlersTestSuite) TestCreateTransfer_ValidationFields() {
	w := suite.request(http.MethodPost, "/api/v1/transfers", transferBody("not-a-uuid", uuid.NewString(), "-5"),
		map[string]string{handlers.IdempotencyKeyHeader: "key-3"})
	suite.Require().Equal(http.StatusBadRequest, w.Code)

	var body dto.ErrorResponse
	suite.decode(w, &body)
	suite.Equal("VALIDATION_ERROR", body.Code)
	suite.Equal("must be a valid UUID", body.Fields["sourceAccountID"])
	suite.Equal("must be a positive amount with at most 4 decimal places", body.Fields["amount"])
}

func (suite *HandlersTestSuite) TestAmountsBeyondStoredScaleAreRejected() {
	src := suite.openAccount("10")
	dst := suite.openAccount("0")

	for i, amount := range []string{"1.00005", "0.00004", "0.000000000001", "10000000000000000"} {
		w := suite.request(http.MethodPost, "/api/v1/transfers", transferBody(src, dst, amount),
			map[string]string{handlers.IdempotencyKeyHeader: fmt.Sprintf("scale-%d", i)})
		suite.Require().Equal(http.StatusBadRequest, w.Code, amount)
		var body dto.ErrorResponse
		suite.decode(w, &body)
		suite.Contains(body.Fields, "amount", amount)
	}

	w := suite.request(http.MethodPost, "/api/v1/ledger/accounts/"+dst+"/credit", gin.H{
		"amount":        "0.00005",
		"correlationID": "deposit-scale",
	}, nil)
	suite.Equal(http.StatusBadRequest, w.Code, w.Body.String())

	// trailing zeros do not add precision
	w = suite.request(http.MethodPost, "/api/v1/transfers", transferBody(src, dst, "1.250000"),
		map[string]string{handlers.IdempotencyKeyHeader: "scale-ok"})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	suite.True(suite.balanceOf(dst).Equal(decimal.RequireFromString("1.25")))
	suite.True(suite.balanceOf(src).Equal(decimal.RequireFromString("8.75")))
}

func (suite *HandlersTestSuite) TestCreateTransfer_MissingKeyIsRejected() {
	src := suite.openAccount("10")
	dst := suite.openAccount("0")

	w := suite.request(http.MethodPost, "/api/v1/transfers", transferBody(src, dst, "1"), nil)
	suite.Equal(http.StatusBadRequest, w.Code, w.Body.String())
}

func (suite *HandlersTestSuite) TestCreateTransfer_KeyReusedWithDifferentPayload() {
	src := suite.openAccount("1000")
	dst := suite.openAccount("0")
	headers := map[string]string{handlers.IdempotencyKeyHeader: "key-4"}

	w := suite.request(http.MethodPost, "/api/v1/transfers", transferBody(src, dst, "10"), headers)
	suite.Require().Equal(http.StatusCreated, w.Code)

	w = suite.request(http.MethodPost, "/api/v1/transfers", transferBody(src, dst, "20"), headers)
	suite.Require().Equal(http.StatusUnprocessableEntity, w.Code)
	var body dto.ErrorResponse
	suite.decode(w, &body)
	suite.Equal("IDEMPOTENCY_KEY_MISMATCH", body.Code)
}

func (suite *HandlersTestSuite) TestGetTransfer_NotFound() {
	w := suite.request(http.MethodGet, "/api/v1/transfers/"+uuid.NewString(), nil, nil)
	suite.Equal(http.StatusNotFound, w.Code)

	var body dto.ErrorResponse
	suite.decode(w, &body)
	suite.Equal("NOT_FOUND", body.Code)
}

func (suite *HandlersTestSuite) TestReverseTransfer() {
	src := suite.openAccount("300")
	dst := suite.openAccount("0")

	w := suite.request(http.MethodPost, "/api/v1/transfers", transferBody(src, dst, "120"),
		map[string]string{handlers.IdempotencyKeyHeader: "key-5"})
	suite.Require().Equal(http.StatusCreated, w.Code)
	var original dto.TransferResult
	suite.decode(w, &original)

	w = suite.request(http.MethodPost, "/api/v1/transfers/"+original.TransactionID+"/reversal", nil, nil)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	suite.True(decimal.RequireFromString("300").Equal(suite.balanceOf(src)))
	suite.True(decimal.RequireFromString("0").Equal(suite.balanceOf(dst)))

	w = suite.request(http.MethodGet, "/api/v1/transfers/"+original.TransactionID, nil, nil)
	var txn dto.TransferResponse
	suite.decode(w, &txn)
	suite.Equal(domain.TransactionReversed, txn.Status)
	suite.Require().NotNil(txn.ReversedByID)
}

func (suite *HandlersTestSuite) TestListAccountTransactions() {
	src := suite.openAccount("100")
	dst := suite.openAccount("0")
	for i := 0; i < 3; i++ {
		w := suite.request(http.MethodPost, "/api/v1/transfers", transferBody(src, dst, "5"),
			map[string]string{handlers.IdempotencyKeyHeader: fmt.Sprintf("list-%d", i)})
		suite.Require().Equal(http.StatusCreated, w.Code)
	}

	w := suite.request(http.MethodGet, "/api/v1/accounts/"+dst+"/transactions?page=0&size=2", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var page dto.TransactionHistoryResponse
	suite.decode(w, &page)
	suite.Equal(3, page.Total)
	suite.Len(page.Items, 2)
	suite.Equal(2, page.Size)

	w = suite.request(http.MethodGet, "/api/v1/accounts/"+dst+"/transactions?size=0", nil, nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.request(http.MethodGet, "/api/v1/accounts/"+uuid.NewString()+"/transactions", nil, nil)
	suite.Equal(http.StatusNotFound, w.Code, w.Body.String())
}

func (suite *HandlersTestSuite) TestLedger_FindOperation() {
	acc := suite.openAccount("40")

	w := suite.request(http.MethodGet, "/api/v1/ledger/accounts/"+acc+"/operations/corr-1/reserve", nil, nil)
	suite.Equal(http.StatusNotFound, w.Code)

	w = suite.request(http.MethodPost, "/api/v1/ledger/accounts/"+acc+"/reserve", gin.H{"amount": "15", "correlationID": "corr-1"}, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = suite.request(http.MethodGet, "/api/v1/ledger/accounts/"+acc+"/operations/corr-1/reserve", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var result domain.LedgerResult
	suite.decode(w, &result)
	suite.True(result.Replayed)
	suite.True(decimal.RequireFromString("25").Equal(result.AvailableBalance))
}

func (suite *HandlersTestSuite) TestLedger_BusinessErrors() {
	acc := suite.openAccount("10")

	w := suite.request(http.MethodPost, "/api/v1/ledger/accounts/"+acc+"/reserve", gin.H{"amount": "11", "correlationID": "c"}, nil)
	suite.Equal(http.StatusUnprocessableEntity, w.Code)
	var body dto.ErrorResponse
	suite.decode(w, &body)
	suite.Equal("INSUFFICIENT_FUNDS", body.Code)

	w = suite.request(http.MethodPost, "/api/v1/ledger/accounts/"+acc+"/release", gin.H{"amount": "1", "correlationID": "none"}, nil)
	suite.Equal(http.StatusUnprocessableEntity, w.Code)
	suite.decode(w, &body)
	suite.Equal("NO_SUCH_RESERVATION", body.Code)

	w = suite.request(http.MethodPatch, "/api/v1/ledger/accounts/"+acc+"/status", gin.H{"status": "FROZEN"}, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlersTestSuite) TestLedger_History() {
	acc := suite.openAccount("10")

	w := suite.request(http.MethodGet, "/api/v1/ledger/accounts/"+acc+"/history", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var page dto.HistoryPageResponse
	suite.decode(w, &page)
	suite.Equal(1, page.Total)
	suite.Equal(domain.OpCredit, page.Items[0].Operation)
	suite.Equal(domain.ReasonDeposit, page.Items[0].Reason)
}

func (suite *HandlersTestSuite) TestSagas() {
	w := suite.request(http.MethodGet, "/api/v1/sagas", nil, nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.request(http.MethodGet, "/api/v1/sagas?reconciliation=true", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.JSONEq(`[]`, w.Body.String())

	w = suite.request(http.MethodGet, "/api/v1/sagas/"+uuid.NewString(), nil, nil)
	suite.Equal(http.StatusNotFound, w.Code)

	src := suite.openAccount("50")
	dst := suite.openAccount("0")
	w = suite.request(http.MethodPost, "/api/v1/transfers", transferBody(src, dst, "20"),
		map[string]string{handlers.IdempotencyKeyHeader: "saga-lookup"})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var result dto.TransferResult
	suite.decode(w, &result)

	w = suite.request(http.MethodGet, "/api/v1/transfers/"+result.TransactionID+"/saga", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var saga dto.SagaResponse
	suite.decode(w, &saga)
	suite.Equal(result.TransactionID, saga.TransactionID)
	suite.Equal(domain.SagaCompleted, saga.Status)
	suite.Equal(domain.StepCompleted, saga.CurrentStep)
	suite.False(saga.NeedsReconciliation)

	w = suite.request(http.MethodGet, "/api/v1/sagas/"+saga.SagaID, nil, nil)
	suite.Equal(http.StatusOK, w.Code)

	w = suite.request(http.MethodGet, "/api/v1/transfers/"+uuid.NewString()+"/saga", nil, nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestHealth() {
	w := suite.request(http.MethodGet, "/health", nil, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal("OK", w.Body.String())
}

// --- Mock TransferService ---
type MockTransferService struct {
	mock.Mock
}

func (m *MockTransferService) ExecuteTransfer(ctx context.Context, cmd dto.TransferCommand) (*dto.TransferResult, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.TransferResult), args.Error(1)
}

func (m *MockTransferService) GetTransfer(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransferService) ListTransactionHistory(ctx context.Context, accountID string, page, size int) (*dto.TransactionHistoryPage, error) {
	args := m.Called(ctx, accountID, page, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.TransactionHistoryPage), args.Error(1)
}

func (m *MockTransferService) ReverseTransfer(ctx context.Context, transactionID, idempotencyKey, description string) (*dto.TransferResult, error) {
	args := m.Called(ctx, transactionID, idempotencyKey, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.TransferResult), args.Error(1)
}

func (m *MockTransferService) GetSaga(ctx context.Context, sagaID string) (*domain.Saga, error) {
	args := m.Called(ctx, sagaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Saga), args.Error(1)
}

func (m *MockTransferService) GetSagaByTransactionID(ctx context.Context, transactionID string) (*domain.Saga, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Saga), args.Error(1)
}

func (m *MockTransferService) ListSagasNeedingReconciliation(ctx context.Context, limit int) ([]domain.Saga, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Saga), args.Error(1)
}

func (m *MockTransferService) ReconcileSaga(ctx context.Context, sagaID string) (*domain.Saga, error) {
	args := m.Called(ctx, sagaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Saga), args.Error(1)
}

// Ensure mock implements the interface
var _ portssvc.TransferSvcFacade = (*MockTransferService)(nil)

func TestGetTransfer_ErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantError  string
	}{
		{"transient is masked", fmt.Errorf("RESERVE: %w: Post \"http://ledger:8080/api/v1/ledger/accounts/a/reserve\": dial tcp 10.0.0.7:8080: connect: connection refused", apperrors.ErrTransient), http.StatusServiceUnavailable, "TRANSIENT_NETWORK_ERROR", "Failed to retrieve transfer"},
		{"conflict", apperrors.ErrInvalidTransition, http.StatusConflict, "CONFLICT", "invalid status transition"},
		{"internal is masked", errors.New("pq: connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve transfer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockTransferService)
			svc.On("GetTransfer", mock.Anything, "txn-1").Return(nil, tt.err)

			router := gin.New()
			handlers.RegisterRoutes(router, &portssvc.ServiceContainer{Transfer: svc}, handlers.RouteOptions{})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/transfers/txn-1", nil))

			var body dto.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decoding body %q: %v", w.Body.String(), err)
			}
			if w.Code != tt.wantStatus || body.Code != tt.wantCode || body.Error != tt.wantError {
				t.Fatalf("got %d %s %q, want %d %s %q", w.Code, body.Code, body.Error, tt.wantStatus, tt.wantCode, tt.wantError)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestReconcileSaga_ReturnsSaga(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockTransferService)
	svc.On("ReconcileSaga", mock.Anything, "saga-1").Return(&domain.Saga{
		SagaID:      "saga-1",
		Status:      domain.SagaCompensated,
		CurrentStep: domain.StepDebited,
	}, nil)

	router := gin.New()
	handlers.RegisterRoutes(router, &portssvc.ServiceContainer{Transfer: svc}, handlers.RouteOptions{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sagas/saga-1/reconcile", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var body dto.SagaResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != domain.SagaCompensated {
		t.Fatalf("status = %s", body.Status)
	}
	svc.AssertExpectations(t)
}
