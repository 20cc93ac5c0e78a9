package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	allocationdomain "github.com/sitewise/rabill/internal/allocation/domain"
	billdomain "github.com/sitewise/rabill/internal/bill/domain"
	budgetdomain "github.com/sitewise/rabill/internal/budget/domain"
	"github.com/sitewise/rabill/internal/config"
	"github.com/sitewise/rabill/internal/recompute"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBillService struct {
	bill *billdomain.Bill
}

func (f *fakeBillService) Preview(ctx context.Context, input billdomain.BillInput) billdomain.BillBreakdown {
	b := billdomain.ZeroBreakdown()
	b.NetPayable = input.GrossAmount
	return b
}

func (f *fakeBillService) Submit(ctx context.Context, req billdomain.SubmitRequest) (*billdomain.SubmitResponse, error) {
	return &billdomain.SubmitResponse{
		Bill:      f.bill,
		Breakdown: f.Preview(ctx, req.Input),
	}, nil
}

func (f *fakeBillService) GetByID(ctx context.Context, id string) (*billdomain.Bill, error) {
	if f.bill == nil || f.bill.ID.String() != id {
		return nil, billdomain.ErrBillNotFound
	}
	return f.bill, nil
}

func (f *fakeBillService) List(ctx context.Context, req billdomain.ListRequest) ([]billdomain.Bill, error) {
	if f.bill == nil {
		return []billdomain.Bill{}, nil
	}
	return []billdomain.Bill{*f.bill}, nil
}

type fakeAllocationService struct {
	addErr  error
	mapping *allocationdomain.Mapping
}

func (f *fakeAllocationService) AddMapping(ctx context.Context, req allocationdomain.AddMappingRequest) (*allocationdomain.Mapping, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	return f.mapping, nil
}

func (f *fakeAllocationService) RemoveMapping(ctx context.Context, mappingID string) error {
	return nil
}

func (f *fakeAllocationService) RemainingPercentage(ctx context.Context, costItemID string) (decimal.Decimal, error) {
	return decimal.NewFromInt(100), nil
}

func (f *fakeAllocationService) ListMappings(ctx context.Context, costItemID string) ([]allocationdomain.Mapping, error) {
	return []allocationdomain.Mapping{}, nil
}

func (f *fakeAllocationService) CreateCostItem(ctx context.Context, req allocationdomain.CreateCostItemRequest) (*allocationdomain.CostItem, error) {
	return &allocationdomain.CostItem{Code: req.Code, Amount: req.Amount}, nil
}

func (f *fakeAllocationService) GetCostItem(ctx context.Context, costItemID string) (*allocationdomain.CostItem, error) {
	return nil, allocationdomain.ErrCostItemNotFound
}

type fakeBudgetService struct {
	classification budgetdomain.Classification
}

func (f *fakeBudgetService) Classify(ctx context.Context, milestoneID snowflake.ID, amount decimal.Decimal) (budgetdomain.Classification, error) {
	out := f.classification
	out.ProposedAmount = amount
	return out, nil
}

func (f *fakeBudgetService) RecalculateMilestone(ctx context.Context, milestoneID snowflake.ID) error {
	return nil
}

func (f *fakeBudgetService) GetSnapshot(ctx context.Context, milestoneID snowflake.ID) (*budgetdomain.MilestoneBudgetSnapshot, error) {
	return nil, nil
}

type passthroughCalc struct{}

func (passthroughCalc) Compute(ctx context.Context, input billdomain.BillInput) billdomain.BillBreakdown {
	b := billdomain.ZeroBreakdown()
	b.NetPayable = input.GrossAmount
	return b
}

func newTestServer(t *testing.T, alloc allocationdomain.Service, budget budgetdomain.Service) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop()
	return NewServer(ServerParams{
		Gin:           NewEngine(log),
		Cfg:           config.Config{},
		Log:           log,
		BillSvc:       &fakeBillService{},
		AllocationSvc: alloc,
		BudgetSvc:     budget,
		Debouncer:     recompute.New(passthroughCalc{}, recompute.Config{SettleDelay: 5 * time.Millisecond}, log),
	})
}

func TestBudgetCheckEndpoint(t *testing.T) {
	budget := &fakeBudgetService{classification: budgetdomain.Classification{
		Status:  budgetdomain.BudgetStatusCaution,
		Message: "proposed amount is above 80% of the milestone budget",
	}}
	srv := newTestServer(t, &fakeAllocationService{}, budget)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/milestones/1234567890/budget-check?amount=85000", nil)
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data budgetdomain.Classification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, budgetdomain.BudgetStatusCaution, body.Data.Status)
	assert.True(t, decimal.RequireFromString("85000").Equal(body.Data.ProposedAmount))
}

func TestBudgetCheckRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, &fakeAllocationService{}, &fakeBudgetService{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/milestones/not-an-id/budget-check?amount=100", nil)
	srv.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/milestones/1234567890/budget-check?amount=abc", nil)
	srv.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddAllocationMapsExceedsRemaining(t *testing.T) {
	alloc := &fakeAllocationService{
		addErr: &allocationdomain.ExceedsRemainingError{
			Requested: decimal.RequireFromString("30"),
			Remaining: decimal.RequireFromString("20"),
		},
	}
	srv := newTestServer(t, alloc, &fakeBudgetService{})

	payload := bytes.NewBufferString(`{"milestone_id": "1234567890", "percentage": "30"}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/cost-items/987654321/allocations", payload)
	req.Header.Set("Content-Type", "application/json")
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Error struct {
			Type      string `json:"type"`
			Remaining string `json:"remaining_percentage"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "allocation_error", body.Error.Type)
	assert.Equal(t, "20", body.Error.Remaining)
}

func TestAddAllocationMapsDuplicate(t *testing.T) {
	alloc := &fakeAllocationService{addErr: allocationdomain.ErrDuplicateMilestone}
	srv := newTestServer(t, alloc, &fakeBudgetService{})

	payload := bytes.NewBufferString(`{"milestone_id": "1234567890", "percentage": "10"}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/cost-items/987654321/allocations", payload)
	req.Header.Set("Content-Type", "application/json")
	srv.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetBillNotFound(t *testing.T) {
	srv := newTestServer(t, &fakeAllocationService{}, &fakeBudgetService{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/bills/42", nil)
	srv.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBillSessionLifecycle(t *testing.T) {
	srv := newTestServer(t, &fakeAllocationService{}, &fakeBudgetService{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/bill-sessions", nil)
	srv.Engine().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var opened struct {
		Data struct {
			SessionID string `json:"session_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opened))
	require.NotEmpty(t, opened.Data.SessionID)

	payload := bytes.NewBufferString(`{"gross_amount": "100000", "gst_rate": "18"}`)
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/v1/bill-sessions/"+opened.Data.SessionID+"/input", payload)
	req.Header.Set("Content-Type", "application/json")
	srv.Engine().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	assert.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/bill-sessions/"+opened.Data.SessionID+"/latest", nil)
		srv.Engine().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			return false
		}
		var latest struct {
			Data struct {
				Seq       uint64                    `json:"seq"`
				Breakdown *billdomain.BillBreakdown `json:"breakdown"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &latest); err != nil {
			return false
		}
		return latest.Data.Breakdown != nil &&
			decimal.RequireFromString("100000").Equal(latest.Data.Breakdown.NetPayable)
	}, time.Second, 10*time.Millisecond)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/v1/bill-sessions/"+opened.Data.SessionID, nil)
	srv.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/bill-sessions/"+opened.Data.SessionID+"/latest", nil)
	srv.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
