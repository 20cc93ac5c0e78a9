package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"github.com/sitewise/rabill/internal/allocation"
	"github.com/sitewise/rabill/internal/bill"
	"github.com/sitewise/rabill/internal/budget"
	"github.com/sitewise/rabill/internal/clock"
	"github.com/sitewise/rabill/internal/config"
	"github.com/sitewise/rabill/internal/events"
	"github.com/sitewise/rabill/internal/logger"
	"github.com/sitewise/rabill/internal/migration"
	"github.com/sitewise/rabill/internal/recompute"
	"github.com/sitewise/rabill/internal/server"
	"github.com/sitewise/rabill/internal/statutory"
	"github.com/sitewise/rabill/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		clock.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(RegisterRedis),
		db.Module,
		events.Module,
		migration.Module,

		// Functional domains
		statutory.Module,
		bill.Module,
		recompute.Module,
		allocation.Module,
		budget.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

// RegisterRedis returns nil when no address is configured; consumers fall
// back to in-process locking.
func RegisterRedis(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}
