// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

// Command tesseractl is a harness for driving the execution engine against
// a synthetic table outside of a real host process: it builds a table,
// inserts generated rows, and runs a small fixed pipeline of executors
// (scan, order-by, hash aggregate) over it, printing the result. It
// exists for local experimentation and benchmarking, not as the engine's
// real entry point — a real deployment embeds the engine as a library
// driven by the host runtime described in SPEC_FULL.md §6.
package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tesseradb/tessera/internal/agg"
	"github.com/tesseradb/tessera/internal/engineconfig"
	"github.com/tesseradb/tessera/internal/exec"
	"github.com/tesseradb/tessera/internal/table"
	"github.com/tesseradb/tessera/internal/telemetry"
	"github.com/tesseradb/tessera/internal/value"
)

var (
	rootCmd = &cobra.Command{
		Use:   "tesseractl",
		Short: "Drive the tessera execution engine against a synthetic table",
	}

	rowCount       int
	groupWidth     int
	partitionCount int
)

func init() {
	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Insert synthetic rows and run a scan+order-by+hash-aggregate pipeline per simulated partition",
		RunE:  runBench,
	}
	benchCmd.Flags().IntVar(&rowCount, "rows", 10000, "number of synthetic rows to insert per partition")
	benchCmd.Flags().IntVar(&groupWidth, "groups", 16, "number of distinct group-by keys")
	benchCmd.Flags().IntVar(&partitionCount, "partitions", 1, "number of simulated partitions to drive concurrently")
	rootCmd.AddCommand(benchCmd)

	v := viper.New()
	v.SetEnvPrefix("TESSERA")
	v.AutomaticEnv()
	rootCmd.PersistentFlags().Int64("snapshot-byte-threshold", engineconfig.Defaults().SnapshotByteThreshold, "COW streamMore byte budget")
	_ = v.BindPFlag("snapshot_byte_threshold", rootCmd.PersistentFlags().Lookup("snapshot-byte-threshold"))
	rootCmd.PersistentFlags().Int64("progress-report-every", engineconfig.Defaults().ProgressReportEvery, "tuples between progress callbacks")
	_ = v.BindPFlag("progress_report_every", rootCmd.PersistentFlags().Lookup("progress-report-every"))

	cobra.OnInitialize(func() {
		tunables = engineconfig.LoadFromViper(v)
	})
}

var tunables engineconfig.Tunables

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func syntheticSchema() *value.TupleSchema {
	return value.NewTupleSchema(
		value.ColumnSchema{Type: value.Integer},
		value.ColumnSchema{Type: value.BigInt},
	)
}

// runBench drives one pipeline per simulated partition. Per SPEC_FULL.md
// §5, the engine core itself never runs an operator's scan loop across
// goroutines (spec.md §1's "no multi-threaded intra-operator parallelism"
// Non-goal) — the concurrency here is only across independent partitions,
// each with its own table and its own single-threaded pipeline, fanned out
// with an errgroup the way the teacher's own tests fan out concurrent
// observers over a shared loop (e.g.
// satellite/metabase/segmentloop/service_test.go's `var group errgroup.Group`
// + `group.Go(...)` + `group.Wait()` shape).
func runBench(cmd *cobra.Command, args []string) error {
	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	scope := telemetry.NewScope(log).Named("tesseractl")

	if partitionCount < 1 {
		partitionCount = 1
	}

	var group errgroup.Group
	var printMu sync.Mutex
	for p := 0; p < partitionCount; p++ {
		partitionID := int32(p)
		group.Go(func() error {
			results, err := runPartitionPipeline(partitionID, scope.Named(fmt.Sprintf("partition-%d", partitionID)))
			if err != nil {
				return err
			}
			printMu.Lock()
			defer printMu.Unlock()
			printResults(partitionID, results)
			return nil
		})
	}
	return group.Wait()
}

// runPartitionPipeline builds one partition's synthetic table, inserts
// rowCount rows, and runs seq scan -> order-by -> hash-aggregate over it,
// returning the finalized (group, count, sum) rows.
func runPartitionPipeline(partitionID int32, scope *telemetry.Scope) ([][]value.Value, error) {
	tbl := table.NewPersistentTable(syntheticSchema(), table.DefaultTuplesPerBlock, 0)

	reported := int64(0)
	progress := telemetry.NewProgressMonitor(tunables.ProgressReportEvery, func(n int64) {
		reported = n
		scope.Log.Info("progress", zap.Int64("tuples", n))
	})

	for i := 0; i < rowCount; i++ {
		group := int32(i % groupWidth)
		if _, err := tbl.Insert([]value.Value{value.NewInteger(group), value.NewBigInt(int64(i))}); err != nil {
			return nil, err
		}
		progress.Advance(1)
	}
	progress.Close()
	scope.Log.Info("inserted", zap.Int("rows", rowCount), zap.Int64("progress_reported", reported))

	scanned, err := (&exec.SeqScanExecutor{Input: tbl}).Execute()
	if err != nil {
		return nil, err
	}

	ordered, err := (&exec.OrderByExecutor{
		Input:        scanned,
		OutputSchema: scanned.Schema(),
		SortKeys:     []exec.SortKey{{Column: 1, Descending: true}},
		Offset:       0,
		Limit:        int64(rowCount),
	}).Execute()
	if err != nil {
		return nil, err
	}

	spec := &agg.Spec{
		GroupByColumns: []int{0},
		Kinds:          []agg.Kind{agg.CountStar, agg.Sum},
		Distinct:       []bool{false, false},
		InputColumns:   []int{-1, 1},
		OutputTypes:    []value.Type{value.BigInt, value.BigInt},
	}
	var results [][]value.Value
	hashAgg := agg.NewHashAggregator(spec, func(row []value.Value) error {
		results = append(results, row)
		return nil
	})
	consumer := exec.NewAggregateConsumer(hashAgg)
	it := ordered.NewIterator()
	for {
		tup, ok := it.Next()
		if !ok {
			break
		}
		if err := consumer.Consume(tup.Columns()); err != nil {
			return nil, err
		}
	}
	if err := consumer.Finish(); err != nil {
		return nil, err
	}
	return results, nil
}

func printResults(partitionID int32, results [][]value.Value) {
	for _, row := range results {
		group, _ := row[0].Int64()
		count, _ := row[1].Int64()
		sum, _ := row[2].Int64()
		fmt.Printf("partition=%d group=%d count=%d sum=%d\n", partitionID, group, count, sum)
	}
}
