package dataset

import (
	"context"
	"math/rand"

	"github.com/hupe1980/vecann/index"
	"github.com/hupe1980/vecann/matrix"
)

// querySeedOffset separates the query stream from the dataset stream.
const querySeedOffset = 0x5eed

// checkEvery is the number of rows generated between cancellation checks.
const checkEvery = 1024

// Config describes a synthetic dataset.
type Config struct {
	// Samples is the number of dataset vectors.
	Samples int
	// Queries is the number of query vectors.
	Queries int
	// Dim is the vector dimension.
	Dim int
	// Centers is the number of blobs. 0 selects DefaultConfig.Centers.
	Centers int
	// ClusterStd is the per-coordinate standard deviation of every blob.
	// 0 selects DefaultConfig.ClusterStd.
	ClusterStd float32
	// CenterBox bounds the blob centres to [-CenterBox, CenterBox] per
	// coordinate. 0 selects DefaultConfig.CenterBox.
	CenterBox float32
	// Seed drives both streams.
	Seed int64
}

// DefaultConfig holds the defaults applied to zero-valued Config fields.
var DefaultConfig = Config{
	Centers:    10,
	ClusterStd: 1,
	CenterBox:  10,
	Seed:       42,
}

// Generate returns a Samples x Dim dataset and a Queries x Dim query batch.
//
// Dataset rows are assigned to blobs round-robin. Queries pick a blob at
// random and are sampled from an independent stream, so they never alias
// dataset rows.
func Generate(ctx context.Context, cfg Config) (data, queries *matrix.Matrix[float32], err error) {
	cfg = withDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	centers, err := matrix.New[float32](cfg.Centers, cfg.Dim)
	if err != nil {
		return nil, nil, err
	}
	box := float64(cfg.CenterBox)
	for j := range centers.Data() {
		centers.Data()[j] = float32((rng.Float64()*2 - 1) * box)
	}

	data, err = matrix.New[float32](cfg.Samples, cfg.Dim)
	if err != nil {
		return nil, nil, err
	}
	for i := 0; i < cfg.Samples; i++ {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		sample(rng, data.Row(i), centers.Row(i%cfg.Centers), cfg.ClusterStd)
	}

	qrng := rand.New(rand.NewSource(cfg.Seed + querySeedOffset))
	queries, err = matrix.New[float32](cfg.Queries, cfg.Dim)
	if err != nil {
		return nil, nil, err
	}
	for i := 0; i < cfg.Queries; i++ {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		sample(qrng, queries.Row(i), centers.Row(qrng.Intn(cfg.Centers)), cfg.ClusterStd)
	}

	return data, queries, nil
}

func sample(rng *rand.Rand, dst, center []float32, std float32) {
	for j, c := range center {
		dst[j] = c + float32(rng.NormFloat64())*std
	}
}

func withDefaults(cfg Config) Config {
	if cfg.Centers == 0 {
		cfg.Centers = DefaultConfig.Centers
	}
	if cfg.ClusterStd == 0 {
		cfg.ClusterStd = DefaultConfig.ClusterStd
	}
	if cfg.CenterBox == 0 {
		cfg.CenterBox = DefaultConfig.CenterBox
	}
	return cfg
}

func validate(cfg Config) error {
	switch {
	case cfg.Samples <= 0:
		return &index.ErrInvalidParameter{Name: "n_samples", Value: cfg.Samples, Reason: "must be > 0"}
	case cfg.Queries <= 0:
		return &index.ErrInvalidParameter{Name: "n_queries", Value: cfg.Queries, Reason: "must be > 0"}
	case cfg.Dim <= 0:
		return &index.ErrInvalidParameter{Name: "n_dim", Value: cfg.Dim, Reason: "must be > 0"}
	case cfg.Centers < 0:
		return &index.ErrInvalidParameter{Name: "centers", Value: cfg.Centers, Reason: "must be > 0"}
	case cfg.ClusterStd < 0:
		return &index.ErrInvalidParameter{Name: "cluster_std", Value: cfg.ClusterStd, Reason: "must be >= 0"}
	case cfg.CenterBox < 0:
		return &index.ErrInvalidParameter{Name: "center_box", Value: cfg.CenterBox, Reason: "must be > 0"}
	}
	return nil
}
