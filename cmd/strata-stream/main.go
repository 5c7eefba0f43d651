// Package main provides the strata-stream debug CLI.
//
// Usage:
//
//	strata-stream emit [-rows N] [-partitions P] [-out <path>]
//	strata-stream inspect -in <path>
//
// emit streams a synthetic result set as length-prefixed msgpack
// frames; inspect decodes such a frame stream and prints a per-message
// summary. Together they exercise the full encode/stream/frame path
// without a query engine attached.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/loamdata/strata/colenc"
	"github.com/loamdata/strata/config"
	"github.com/loamdata/strata/log"
	"github.com/loamdata/strata/metrics"
	"github.com/loamdata/strata/plan"
	"github.com/loamdata/strata/sink"
	"github.com/loamdata/strata/stream"
	"github.com/loamdata/strata/types"
	"github.com/loamdata/strata/wire"
)

const (
	exitSuccess = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	app := &cli.App{
		Name:    "strata-stream",
		Usage:   "Emit and inspect strata result streams",
		Version: "0.1.0",
		Commands: []*cli.Command{
			emitCommand(),
			inspectCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		var exitCoder cli.ExitCoder
		if errors.As(err, &exitCoder) {
			if msg := exitCoder.Error(); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			os.Exit(exitCoder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitFailure)
	}
}

func emitCommand() *cli.Command {
	return &cli.Command{
		Name:  "emit",
		Usage: "Stream a synthetic result set as framed messages",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to strata.yaml (optional)",
			},
			&cli.StringFlag{
				Name:  "client-id",
				Usage: "Client ID stamped on every message (default: random UUID)",
			},
			&cli.IntFlag{
				Name:  "rows",
				Usage: "Total synthetic rows to emit",
				Value: 100,
			},
			&cli.IntFlag{
				Name:  "partitions",
				Usage: "Number of partitions to spread rows across",
				Value: 1,
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "Output file for frames (default: stdout)",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress the stream log on stderr",
			},
		},
		Action: emitAction,
	}
}

func emitAction(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), exitUsage)
	}
	loc, err := cfg.Location()
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), exitUsage)
	}

	totalRows := c.Int("rows")
	numPartitions := c.Int("partitions")
	if totalRows < 0 || numPartitions < 1 {
		return cli.Exit("rows must be >= 0 and partitions >= 1", exitUsage)
	}

	clientID := c.String("client-id")
	if clientID == "" {
		clientID = uuid.NewString()
	}
	session, err := types.NewSession(clientID, cfg.Budget())
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	out := io.Writer(os.Stdout)
	if path := c.String("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		out = f
	}
	frameSink := sink.NewFrameSink(out, sink.FrameSinkConfig{
		Compress:            cfg.Compression.Enabled,
		CompressionMinSize:  cfg.Compression.MinSize,
		CompressionMinRatio: cfg.Compression.MinRatio,
	})
	defer func() { _ = frameSink.Close() }()

	logger := log.NewLogger(session)
	if c.Bool("quiet") {
		logger = log.Nop()
	}
	collector := metrics.NewCollector(clientID, "frame")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	streamer := stream.New(stream.Options{
		Location:  loc,
		Logger:    logger,
		Collector: collector,
	})
	req := &stream.Request{
		Kind:       stream.RequestKindQuery,
		Session:    session,
		Schema:     syntheticSchema(),
		Partitions: syntheticPartitions(totalRows, numPartitions),
		Plan:       syntheticPlan(),
	}
	if err := streamer.Stream(ctx, req, sink.NewInstrumentedSink(frameSink, collector)); err != nil {
		return cli.Exit(fmt.Sprintf("stream failed: %v", err), exitFailure)
	}

	snap := collector.Snapshot()
	logger.Info("emit complete", map[string]any{
		"batches":       snap.BatchesSent,
		"rows":          snap.RowsSent,
		"payload_bytes": snap.PayloadBytes,
	})
	return nil
}

func syntheticSchema() types.Schema {
	return types.Schema{Columns: []types.Column{
		{Name: "id", Type: types.ColumnTypeInt64},
		{Name: "partition", Type: types.ColumnTypeInt64},
		{Name: "label", Type: types.ColumnTypeString},
	}}
}

// syntheticPartitions spreads n rows round-robin across p partitions.
func syntheticPartitions(n, p int) []types.Partition {
	buckets := make([][]types.Row, p)
	for i := 0; i < n; i++ {
		part := i % p
		buckets[part] = append(buckets[part], types.Row{
			int64(i), int64(part), fmt.Sprintf("row-%d", i),
		})
	}
	return types.SlicePartitions(buckets...)
}

func syntheticPlan() *plan.Node {
	return &plan.Node{ID: 0, Name: "Projection", Kind: plan.KindRegular, Children: []*plan.Node{
		{ID: 1, Name: "Gather", Kind: plan.KindWrapper, Children: []*plan.Node{
			{ID: 2, Name: "TableScan", Kind: plan.KindRegular},
		}},
	}}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Decode a frame stream and print per-message summaries",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "in",
				Usage: "Input file of frames (default: stdin)",
			},
			&cli.BoolFlag{
				Name:  "rows",
				Usage: "Also print decoded row values",
			},
		},
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	in := io.Reader(os.Stdin)
	if path := c.String("in"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	reader := wire.NewFrameReader(in)
	for i := 0; ; i++ {
		body, err := reader.ReadFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return cli.Exit(fmt.Sprintf("frame %d: %v", i, err), exitFailure)
		}

		msg, err := wire.DecodeMessage(body)
		if err != nil {
			return cli.Exit(fmt.Sprintf("frame %d: %v", i, err), exitFailure)
		}
		if err := printMessage(msg, c.Bool("rows")); err != nil {
			return cli.Exit(fmt.Sprintf("frame %d: %v", i, err), exitFailure)
		}
	}
}

func printMessage(msg any, withRows bool) error {
	switch m := msg.(type) {
	case *types.DataBatchMessage:
		fmt.Printf("seq=%d data_batch rows=%d payload=%dB compressed=%t\n",
			m.Seq, m.RowCount, len(m.Payload), m.Compressed)
		if withRows {
			return printRows(m)
		}
	case *types.MetricsTrailerMessage:
		fmt.Printf("seq=%d metrics_trailer records=%d\n", m.Seq, len(m.Records))
		for _, r := range m.Records {
			fmt.Printf("  node=%d parent=%d name=%s metrics=%d\n",
				r.PlanID, r.ParentID, r.NodeName, len(r.Metrics))
		}
	case *types.CompletionMessage:
		fmt.Printf("seq=%d completion\n", m.Seq)
	case *types.ErrorMessage:
		fmt.Printf("seq=%d error kind=%s cause=%s\n", m.Seq, m.Kind, m.Cause)
	default:
		fmt.Printf("unknown message %T\n", msg)
	}
	return nil
}

func printRows(m *types.DataBatchMessage) error {
	raw, err := sink.DecompressPayload(m)
	if err != nil {
		return err
	}
	payload, err := colenc.DecodePayload(raw)
	if err != nil {
		return err
	}
	for i := 0; i < payload.RowCount; i++ {
		fmt.Printf("  %v\n", payload.Row(i))
	}
	return nil
}
