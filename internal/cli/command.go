package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecann"
	"github.com/hupe1980/vecann/dataset"
	"github.com/hupe1980/vecann/index/graph"
	"github.com/hupe1980/vecann/matrix"
	"github.com/hupe1980/vecann/report"
	"github.com/hupe1980/vecann/resource"
)

// Kind selects the index a program builds.
type Kind string

const (
	// KindIVF builds a partition index.
	KindIVF Kind = "ivf"
	// KindGraph builds a proximity-graph index.
	KindGraph Kind = "graph"
)

// usageError marks errors caused by malformed command lines.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// Args are the positional arguments of every program.
type Args struct {
	Samples int
	Queries int
	Dim     int
	TopK    int
}

// ParseArgs parses <n_samples> <n_queries> <n_dim> <top_k>.
func ParseArgs(args []string) (Args, error) {
	if len(args) != 4 {
		return Args{}, usageError{fmt.Errorf("expected 4 arguments, got %d", len(args))}
	}

	names := [4]string{"n_samples", "n_queries", "n_dim", "top_k"}
	var vals [4]int
	for i, s := range args {
		v, err := strconv.Atoi(s)
		if err != nil {
			return Args{}, usageError{fmt.Errorf("%s: %q is not an integer", names[i], s)}
		}
		if v <= 0 {
			return Args{}, usageError{fmt.Errorf("%s: must be > 0, got %d", names[i], v)}
		}
		vals[i] = v
	}
	return Args{Samples: vals[0], Queries: vals[1], Dim: vals[2], TopK: vals[3]}, nil
}

type flags struct {
	configPath string
	logLevel   string
	seed       int64
	format     string
}

// NewCommand returns the root command of a program. The report goes to
// stdout, logs go to stderr.
func NewCommand(kind Kind, stdout, stderr io.Writer) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   string(kind) + " <n_samples> <n_queries> <n_dim> <top_k>",
		Short: fmt.Sprintf("Build a %s index over generated data and search it", kind),
		Long: fmt.Sprintf(`Generates n_samples vectors of dimension n_dim from Gaussian blobs,
builds a %s index over them, searches n_queries generated queries for their
top_k nearest neighbours and prints the index statistics, the results and the
recall against an exact search.`, kind),
		Args: func(_ *cobra.Command, args []string) error {
			_, err := ParseArgs(args)
			return err
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ParseArgs(args)
			if err != nil {
				return err
			}
			cfg, err := LoadConfig(f.configPath)
			if err != nil {
				return err
			}
			if f.format != "" {
				cfg.Report.Format = f.format
			}
			level, err := parseLevel(f.logLevel)
			if err != nil {
				return usageError{err}
			}
			logger := vecann.NewLogger(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
			return run(cmd.Context(), kind, a, cfg, f.seed, logger, stdout)
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	cmd.Flags().StringVar(&f.configPath, "config", "", "YAML file with index, search and resource tuning")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.Flags().Int64Var(&f.seed, "seed", 42, "seed for dataset generation and index build")
	cmd.Flags().StringVar(&f.format, "format", "", "report format (text, yaml)")

	return cmd
}

// Run executes a program and returns its exit code: 0 on success, 1 on any
// error. Usage errors also print the usage to stderr.
func Run(ctx context.Context, kind Kind, args []string, stdout, stderr io.Writer) int {
	cmd := NewCommand(kind, stdout, stderr)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprint(stderr, cmd.UsageString())
		}
		return 1
	}
	return 0
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func run(ctx context.Context, kind Kind, a Args, cfg Config, seed int64, logger *vecann.Logger, stdout io.Writer) error {
	rw, err := report.NewWriter(stdout, report.Format(cfg.Report.Format))
	if err != nil {
		return usageError{err}
	}
	rw.MaxQueries = cfg.Report.MaxQueries

	rc := resource.New(resource.Config{
		MemoryLimitBytes: cfg.Resource.MemoryLimitBytes,
		Workers:          cfg.Resource.Workers,
		QueriesPerSecond: cfg.Resource.QueriesPerSecond,
	})
	defer rc.Close()

	data, queries, err := dataset.Generate(ctx, dataset.Config{
		Samples:    a.Samples,
		Queries:    a.Queries,
		Dim:        a.Dim,
		Centers:    cfg.Dataset.Centers,
		ClusterStd: cfg.Dataset.ClusterStd,
		CenterBox:  cfg.Dataset.CenterBox,
		Seed:       seed,
	})
	if err != nil {
		return err
	}
	logger.Info("dataset generated", "n_samples", a.Samples, "n_queries", a.Queries, "n_dim", a.Dim)

	start := time.Now()
	idx, search, err := buildIndex(ctx, kind, rc, data, cfg, seed, logger)
	if err != nil {
		return err
	}
	defer idx.Close()
	buildTime := time.Since(start)

	start = time.Now()
	res := search(vecann.Search(idx, queries).KNN(a.TopK).Logger(logger)).Enqueue(ctx, rc)
	if err := rc.Sync(ctx); err != nil {
		return err
	}
	searchTime := time.Since(start)

	if err := rw.Stats(idx.Stats(), buildTime); err != nil {
		return err
	}
	if err := rw.Results(res.All()); err != nil {
		return err
	}
	if !cfg.Report.Recall {
		return nil
	}

	exact, err := vecann.Flat(a.Dim).Metric(idx.Metric()).Build(ctx, rc, data)
	if err != nil {
		return err
	}
	defer exact.Close()
	truth, err := vecann.Search(exact, queries).KNN(a.TopK).Execute(ctx, rc)
	if err != nil {
		return err
	}
	return rw.Recall(a.TopK, res.Recall(truth), searchTime)
}

// buildIndex builds the index of kind and returns the search settings that
// apply to it.
func buildIndex(ctx context.Context, kind Kind, rc *resource.Context, data *matrix.Matrix[float32], cfg Config, seed int64, logger *vecann.Logger) (vecann.Index, func(*vecann.SearchBuilder) *vecann.SearchBuilder, error) {
	n, dim := data.Rows(), data.Cols()

	switch kind {
	case KindIVF:
		idx, err := vecann.IVF(dim).
			NLists(min(cfg.IVF.NLists, n)).
			TrainsetFraction(cfg.IVF.TrainsetFraction).
			MaxIterations(cfg.IVF.MaxIterations).
			RandomSeed(seed).
			Logger(logger).
			Build(ctx, rc, data)
		if err != nil {
			return nil, nil, err
		}
		return idx, func(sb *vecann.SearchBuilder) *vecann.SearchBuilder {
			return sb.NProbes(cfg.IVF.NProbes)
		}, nil

	case KindGraph:
		algo, err := graph.ParseBuildAlgo(cfg.Graph.BuildAlgo)
		if err != nil {
			return nil, nil, err
		}
		idx, err := vecann.Graph(dim).
			Degree(min(cfg.Graph.Degree, n-1)).
			IntermediateDegree(cfg.Graph.IntermediateDegree).
			Algo(algo).
			Alpha(cfg.Graph.Alpha).
			EntryPoints(cfg.Graph.EntryPoints).
			RandomSeed(seed).
			Logger(logger).
			Build(ctx, rc, data)
		if err != nil {
			return nil, nil, err
		}
		return idx, func(sb *vecann.SearchBuilder) *vecann.SearchBuilder {
			return sb.Width(cfg.Graph.Width).MaxIterations(cfg.Graph.MaxIterations)
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown index kind %q", kind)
	}
}
