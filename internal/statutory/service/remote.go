package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sitewise/rabill/internal/cache"
	"github.com/sitewise/rabill/internal/config"
	obsmetrics "github.com/sitewise/rabill/internal/observability/metrics"
	"github.com/sitewise/rabill/internal/statutory/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const lastGoodScheduleTTL = 10 * time.Minute

type resolveRequestWire struct {
	GrossAmount         decimal.Decimal `json:"gross_amount"`
	GSTPercentage       decimal.Decimal `json:"gst_percentage"`
	RetentionPercentage decimal.Decimal `json:"retention_percentage"`
	OtherDeductions     decimal.Decimal `json:"other_deductions"`
	AdvancesRecovery    decimal.Decimal `json:"advances_recovery"`
}

type chargeWire struct {
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	RatePercentage   decimal.Decimal `json:"rate_percentage"`
	Basis            string          `json:"basis"`
	CalculatedAmount decimal.Decimal `json:"calculated_amount"`
}

type resolveResponseWire struct {
	GSTAmount             decimal.Decimal `json:"gst_amount"`
	TotalBeforeDeductions decimal.Decimal `json:"total_before_deductions"`
	StatutoryCharges      struct {
		Deductions []chargeWire `json:"deductions"`
		Levies     []chargeWire `json:"levies"`
		Recoveries []chargeWire `json:"recoveries"`
	} `json:"statutory_charges"`
	TotalStatutoryDeductions decimal.Decimal `json:"total_statutory_deductions"`
	RetentionAmount          decimal.Decimal `json:"retention_amount"`
	TotalDeductions          decimal.Decimal `json:"total_deductions"`
	NetPayable               decimal.Decimal `json:"net_payable"`
}

// Resolver queries the external rule service and keeps the last good
// schedule per rate tuple so a transport blip does not drop statutory lines.
type Resolver struct {
	client   *http.Client
	endpoint string
	log      *zap.Logger
	lastGood cache.Cache[string, *domain.Result]
	cacheTTL time.Duration
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

func NewResolver(p Params) domain.Resolver {
	return &Resolver{
		client:   &http.Client{Timeout: p.Config.RuleServiceTimeout},
		endpoint: p.Config.RuleServiceURL,
		log:      p.Log.Named("statutory.resolver"),
		lastGood: cache.NewTTLCache[string, *domain.Result](),
		cacheTTL: lastGoodScheduleTTL,
	}
}

func (r *Resolver) Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.Result, error) {
	billingMetrics := obsmetrics.Billing()

	start := time.Now()
	result, err := r.resolveRemote(ctx, req)
	billingMetrics.ObserveResolverLatency(time.Since(start))

	if err == nil {
		billingMetrics.IncResolverRequest(obsmetrics.ResolverOutcomeSuccess)
		r.lastGood.Set(req.CacheKey(), result, r.cacheTTL)
		return result, nil
	}

	if cached, ok := r.lastGood.Get(req.CacheKey()); ok {
		r.log.Warn("rule service unavailable, serving last good schedule",
			zap.Error(err),
		)
		billingMetrics.IncResolverRequest(obsmetrics.ResolverOutcomeCacheHit)
		replay := *cached
		replay.FromCache = true
		return &replay, nil
	}

	r.log.Warn("rule service unavailable", zap.Error(err))
	billingMetrics.IncResolverRequest(obsmetrics.ResolverOutcomeFailure)
	return nil, fmt.Errorf("%w: %w", domain.ErrRuleServiceUnavailable, err)
}

func (r *Resolver) resolveRemote(ctx context.Context, req domain.ResolveRequest) (*domain.Result, error) {
	body, err := json.Marshal(resolveRequestWire{
		GrossAmount:         req.GrossAmount,
		GSTPercentage:       req.GSTPercentage,
		RetentionPercentage: req.RetentionPercentage,
		OtherDeductions:     req.OtherDeductions,
		AdvancesRecovery:    req.AdvancesRecovery,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return nil, fmt.Errorf("rule service returned status %d", resp.StatusCode)
	}

	var wire resolveResponseWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRuleResponse, err)
	}

	return &domain.Result{
		GSTAmount:                wire.GSTAmount,
		TotalBeforeDeductions:    wire.TotalBeforeDeductions,
		Deductions:               charges(wire.StatutoryCharges.Deductions, domain.ChargeCategoryDeduction),
		Levies:                   charges(wire.StatutoryCharges.Levies, domain.ChargeCategoryLevy),
		Recoveries:               charges(wire.StatutoryCharges.Recoveries, domain.ChargeCategoryRecovery),
		TotalStatutoryDeductions: wire.TotalStatutoryDeductions,
		RetentionAmount:          wire.RetentionAmount,
		TotalDeductions:          wire.TotalDeductions,
		NetPayable:               wire.NetPayable,
	}, nil
}

func charges(in []chargeWire, category domain.ChargeCategory) []domain.Charge {
	out := make([]domain.Charge, 0, len(in))
	for _, c := range in {
		out = append(out, domain.Charge{
			Code:             c.Code,
			Name:             c.Name,
			RatePercentage:   c.RatePercentage,
			Basis:            c.Basis,
			CalculatedAmount: c.CalculatedAmount,
			Category:         category,
		})
	}
	return out
}
