package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	allocationdomain "github.com/sitewise/rabill/internal/allocation/domain"
	billdomain "github.com/sitewise/rabill/internal/bill/domain"
	budgetdomain "github.com/sitewise/rabill/internal/budget/domain"
	"github.com/sitewise/rabill/internal/config"
	"github.com/sitewise/rabill/internal/recompute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger

	billSvc       billdomain.Service
	allocationSvc allocationdomain.Service
	budgetSvc     budgetdomain.Service
	debouncer     *recompute.Debouncer
}

type ServerParams struct {
	fx.In

	Gin *gin.Engine
	Cfg config.Config
	Log *zap.Logger

	BillSvc       billdomain.Service
	AllocationSvc allocationdomain.Service
	BudgetSvc     budgetdomain.Service
	Debouncer     *recompute.Debouncer
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("server"),
		billSvc:       p.BillSvc,
		allocationSvc: p.AllocationSvc,
		budgetSvc:     p.BudgetSvc,
		debouncer:     p.Debouncer,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/bills/preview", s.PreviewBill)
	v1.POST("/bills", s.SubmitBill)
	v1.GET("/bills/:id", s.GetBill)
	v1.GET("/bills", s.ListBills)

	v1.POST("/bill-sessions", s.OpenBillSession)
	v1.PUT("/bill-sessions/:id/input", s.SubmitBillSessionInput)
	v1.GET("/bill-sessions/:id/latest", s.LatestBillSessionResult)
	v1.DELETE("/bill-sessions/:id", s.CloseBillSession)

	v1.POST("/cost-items", s.CreateCostItem)
	v1.GET("/cost-items/:id", s.GetCostItem)
	v1.POST("/cost-items/:id/allocations", s.AddAllocation)
	v1.GET("/cost-items/:id/allocations", s.ListAllocations)
	v1.DELETE("/allocations/:id", s.RemoveAllocation)

	v1.GET("/milestones/:id/budget-check", s.CheckMilestoneBudget)
	v1.GET("/milestones/:id/budget", s.GetMilestoneBudget)
}
