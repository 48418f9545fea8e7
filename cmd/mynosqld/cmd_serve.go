package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/mynosql/dbcore/gcplan"
	"github.com/mynosql/dbcore/httpapi"
	"github.com/mynosql/dbcore/microtime"
	"github.com/mynosql/dbcore/syncqueue"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

// serverGroup holds HTTP listener configuration.
type serverGroup struct {
	Address        string `long:"address" default:":5123" description:"Address to serve the REST API on"`
	MetricsAddress string `long:"metrics-address" default:":5124" description:"Address to serve Prometheus metrics on"`
}

// gcGroup holds garbage-collection sweep configuration.
type gcGroup struct {
	Interval time.Duration `long:"interval" default:"5s" description:"How often to run a GC sweep across every table"`
}

// syncGroup holds sync-to-main flush configuration.
type syncGroup struct {
	Period string `long:"period" default:"1" choice:"i" choice:"1" choice:"5" choice:"15" choice:"30" choice:"60" choice:"a" description:"Default sync-to-main flush period (i=immediate, 1/5/15/30/60=seconds, a=asap)"`
}

// cmdServe is the "serve" subcommand: it owns the table registry, the
// HTTP surface, the sync-to-main flush loop, and the GC sweep ticker,
// grounded on go/flowctl/cmd-test.go's Execute-returns-error shape and
// go/flowctl/main.go's grouped-flag-struct configuration idiom (the
// gazette-specific mbp.LogConfig/mbp.DiagnosticsConfig groups are not
// adapted; replaced by plain logrus level configuration since there is
// no equivalent ambient subsystem to carry them for).
type cmdServe struct {
	Server serverGroup `group:"Server" namespace:"server"`
	GC     gcGroup     `group:"GC" namespace:"gc"`
	Sync   syncGroup   `group:"Sync" namespace:"sync"`
	Debug  bool        `long:"debug" description:"Enable debug-level logging"`
}

func (cmd cmdServe) Execute(_ []string) error {
	if cmd.Debug {
		log.SetLevel(log.DebugLevel)
	}

	fmt.Printf("%s mynosqld %s\n", green("▶"), yellow("starting"))
	log.WithFields(log.Fields{
		"address":        cmd.Server.Address,
		"metricsAddress": cmd.Server.MetricsAddress,
		"gcInterval":     cmd.GC.Interval,
		"syncPeriod":     cmd.Sync.Period,
	}).Info("mynosqld configuration")

	registry := httpapi.NewRegistry(true)
	queues := syncqueue.NewQueues()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	period := syncqueue.ParsePeriod(cmd.Sync.Period)
	flusher := syncqueue.NewFlusher(queues, period.Duration(), logFlushedBatch)
	go flusher.Run(ctx)

	go runGCLoop(ctx, registry, cmd.GC.Interval)

	apiServer := httpapi.NewServer(registry, queues)
	router := mux.NewRouter()
	apiServer.RegisterRoutes(router)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	httpSrv := &http.Server{Addr: cmd.Server.Address, Handler: router}
	metricsSrv := &http.Server{Addr: cmd.Server.MetricsAddress, Handler: metricsMux}

	errCh := make(chan error, 2)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	go func() { errCh <- metricsSrv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serving HTTP: %w", err)
		}
	case sig := <-sigCh:
		log.WithField("signal", sig).Info("shutting down")
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	return nil
}

func logFlushedBatch(b syncqueue.Batch) {
	log.WithFields(log.Fields{
		"batch_id":              b.ID,
		"partitions_last_read":  len(b.PartitionsLastRead),
		"rows_last_read":        len(b.RowsLastRead),
		"partitions_expiration": len(b.PartitionsExpiration),
		"rows_expiration":       len(b.RowsExpiration),
	}).Debug("delivered sync-to-main batch")
}

// runGCLoop runs a gcplan.Plan sweep across every registered table on
// interval, evicting whatever each plan names, until ctx is canceled.
func runGCLoop(ctx context.Context, registry *httpapi.Registry, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(registry)
		}
	}
}

func sweepOnce(registry *httpapi.Registry) {
	now := microtime.Now()
	for _, name := range registry.TableNames() {
		table, ok := registry.GetTable(name)
		if !ok {
			continue
		}

		plan := gcplan.Plan(table, now)
		if plan.IsEmpty() {
			continue
		}

		evictedPartitions := 0
		for _, partitionKey := range plan.PartitionsToExpire {
			if _, ok := table.RemovePartition(partitionKey); ok {
				evictedPartitions++
			}
		}

		evictedRows := 0
		for partitionKey, rows := range plan.RowsToExpire {
			for _, row := range rows {
				if removed, _ := table.RemoveRow(partitionKey, row.RowKey(), false); removed != nil {
					evictedRows++
				}
			}
		}

		table.RecordGCEviction("partition", evictedPartitions)
		table.RecordGCEviction("row", evictedRows)

		fmt.Printf("%s table %s: %s partitions, %s rows\n",
			green("gc"), name, red(fmt.Sprintf("%d", evictedPartitions)), yellow(fmt.Sprintf("%d", evictedRows)))
		log.WithFields(log.Fields{
			"table":              name,
			"evicted_partitions": evictedPartitions,
			"evicted_rows":       evictedRows,
		}).Info("gc sweep evicted")
	}
}
