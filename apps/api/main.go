package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/delinquency/internal/clock"
	"github.com/smallbiznis/delinquency/internal/config"
	"github.com/smallbiznis/delinquency/internal/delinquency"
	"github.com/smallbiznis/delinquency/internal/erp"
	"github.com/smallbiznis/delinquency/internal/erpsync"
	"github.com/smallbiznis/delinquency/internal/migration"
	"github.com/smallbiznis/delinquency/internal/observability"
	"github.com/smallbiznis/delinquency/internal/ratelimit"
	"github.com/smallbiznis/delinquency/internal/server"
	"github.com/smallbiznis/delinquency/internal/snapshot"
	"github.com/smallbiznis/delinquency/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		ratelimit.Module,

		erp.Module,
		snapshot.Module,
		// Manual POST /sync only; the periodic worker runs in apps/sync.
		erpsync.Module,

		delinquency.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
