package cli

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/hupe1980/vecann/index/graph"
	"github.com/hupe1980/vecann/index/ivf"
	"github.com/hupe1980/vecann/report"
)

// Config is the tuning file accepted by --config. Every field is optional;
// absent fields keep their defaults.
type Config struct {
	Resource ResourceConfig `yaml:"resource"`
	Dataset  DatasetConfig  `yaml:"dataset"`
	IVF      IVFConfig      `yaml:"ivf"`
	Graph    GraphConfig    `yaml:"graph"`
	Report   ReportConfig   `yaml:"report"`
}

// ResourceConfig configures the execution context.
type ResourceConfig struct {
	// MemoryLimitBytes bounds accounted memory. 0 means unlimited.
	MemoryLimitBytes int64 `yaml:"memory_limit_bytes,omitempty"`
	// Workers is the parallelism. 0 means GOMAXPROCS.
	Workers int `yaml:"workers,omitempty"`
	// QueriesPerSecond throttles search admission. 0 means unthrottled.
	QueriesPerSecond int `yaml:"queries_per_second,omitempty"`
}

// DatasetConfig shapes the generated blobs.
type DatasetConfig struct {
	Centers    int     `yaml:"centers,omitempty"`
	ClusterStd float32 `yaml:"cluster_std,omitempty"`
	CenterBox  float32 `yaml:"center_box,omitempty"`
}

// IVFConfig tunes the partition index.
type IVFConfig struct {
	NLists           int     `yaml:"n_lists"`
	NProbes          int     `yaml:"n_probes"`
	TrainsetFraction float64 `yaml:"trainset_fraction"`
	MaxIterations    int     `yaml:"max_iterations"`
}

// GraphConfig tunes the proximity-graph index.
type GraphConfig struct {
	Degree             int     `yaml:"graph_degree"`
	IntermediateDegree int     `yaml:"intermediate_degree,omitempty"`
	BuildAlgo          string  `yaml:"build_algo"`
	Alpha              float32 `yaml:"alpha"`
	EntryPoints        int     `yaml:"entry_points,omitempty"`
	Width              int     `yaml:"width"`
	MaxIterations      int     `yaml:"max_iterations,omitempty"`
}

// ReportConfig controls the printed report.
type ReportConfig struct {
	Format     string `yaml:"format"`
	MaxQueries int    `yaml:"max_queries"`
	// Recall compares the results against an exact search.
	Recall bool `yaml:"recall"`
}

// DefaultConfig returns the configuration used without --config.
func DefaultConfig() Config {
	return Config{
		IVF: IVFConfig{
			NLists:           ivf.DefaultOptions.NLists,
			NProbes:          ivf.DefaultNProbes,
			TrainsetFraction: ivf.DefaultOptions.TrainsetFraction,
			MaxIterations:    ivf.DefaultOptions.MaxIterations,
		},
		Graph: GraphConfig{
			Degree:    graph.DefaultOptions.GraphDegree,
			BuildAlgo: graph.DefaultOptions.BuildAlgo.String(),
			Alpha:     graph.DefaultOptions.Alpha,
			Width:     graph.DefaultWidth,
		},
		Report: ReportConfig{
			Format:     string(report.FormatText),
			MaxQueries: 10,
			Recall:     true,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults. Unknown keys are
// rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.Strict()); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
