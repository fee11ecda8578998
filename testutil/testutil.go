package testutil

import (
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/vecann/distance"
	"github.com/hupe1980/vecann/index"
	"github.com/hupe1980/vecann/internal/simd"
	"github.com/hupe1980/vecann/matrix"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Float32 in a loop).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// UniformVectors generates random vectors with values in range [0, 1).
// Uses a single backing array for efficiency.
func (r *RNG) UniformVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = r.rand.Float32()
		}
		vectors[i] = vec
	}

	return vectors
}

// GaussianVectors generates random vectors with values from a standard normal distribution.
func (r *RNG) GaussianVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = float32(r.rand.NormFloat64())
		}
		vectors[i] = vec
	}

	return vectors
}

// UnitVectors generates L2-normalized random vectors (on the hypersphere).
// Uses Gaussian distribution for uniform distribution on the sphere.
func (r *RNG) UnitVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		var norm float64
		for j := range vec {
			v := r.rand.NormFloat64()
			vec[j] = float32(v)
			norm += v * v
		}

		if norm == 0 {
			norm = 1
		}

		simd.ScaleInPlace(vec, float32(1.0/math.Sqrt(norm)))
		vectors[i] = vec
	}

	return vectors
}

// ClusteredVectors generates vectors clustered around random centroids.
// Useful for testing ANN index performance on non-uniform data.
func (r *RNG) ClusteredVectors(num, dim, clusters int, spread float32) [][]float32 {
	// UnitVectors takes the lock itself.
	centroids := r.UnitVectors(clusters, dim)

	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	vectors := make([][]float32, num)

	for i := range num {
		centroid := centroids[i%clusters]
		vec := data[i*dim : (i+1)*dim]

		for j := range dim {
			vec[j] = centroid[j] + float32(r.rand.NormFloat64())*spread
		}
		vectors[i] = vec
	}

	return vectors
}

// Matrix copies rows into a dataset matrix. It panics on ragged input.
func Matrix(rows [][]float32) *matrix.Matrix[float32] {
	m, err := matrix.FromRows(rows)
	if err != nil {
		panic(err)
	}
	return m
}

// UniformMatrix is UniformVectors as a matrix.
func (r *RNG) UniformMatrix(num, dim int) *matrix.Matrix[float32] {
	return Matrix(r.UniformVectors(num, dim))
}

// ClusteredMatrix is ClusteredVectors as a matrix.
func (r *RNG) ClusteredMatrix(num, dim, clusters int, spread float32) *matrix.Matrix[float32] {
	return Matrix(r.ClusteredVectors(num, dim, clusters, spread))
}

// BruteForceSearch performs exact search for ground truth.
// Results are sorted by distance, ties by id.
func BruteForceSearch(data *matrix.Matrix[float32], query []float32, k int, dist distance.Func) []index.SearchResult {
	results := make([]index.SearchResult, data.Rows())
	for i := range data.Rows() {
		results[i] = index.SearchResult{ID: uint32(i), Distance: dist(query, data.Row(i))}
	}

	slices.SortFunc(results, func(a, b index.SearchResult) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return int(a.ID) - int(b.ID)
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

// GroundTruth runs BruteForceSearch for every row of queries.
func GroundTruth(data, queries *matrix.Matrix[float32], k int, dist distance.Func) [][]index.SearchResult {
	out := make([][]index.SearchResult, queries.Rows())
	var wg sync.WaitGroup
	for i := range queries.Rows() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i] = BruteForceSearch(data, queries.Row(i), k, dist)
		}()
	}
	wg.Wait()
	return out
}

// ComputeRecall computes recall@k by comparing approximate results against ground truth.
func ComputeRecall(groundTruth, approximate []index.SearchResult) float64 {
	if len(groundTruth) == 0 || len(approximate) == 0 {
		if len(groundTruth) == 0 && len(approximate) == 0 {
			return 1.0
		}
		return 0.0
	}

	k := min(len(approximate), len(groundTruth))

	truthSet := make(map[uint32]struct{}, k)
	for i := range k {
		truthSet[groundTruth[i].ID] = struct{}{}
	}

	hits := 0
	for _, r := range approximate[:k] {
		if _, ok := truthSet[r.ID]; ok {
			hits++
		}
	}

	return float64(hits) / float64(k)
}

// MeanRecall averages ComputeRecall over a batch of queries.
func MeanRecall(groundTruth, approximate [][]index.SearchResult) float64 {
	if len(groundTruth) == 0 {
		return 1.0
	}
	var sum float64
	for i := range groundTruth {
		sum += ComputeRecall(groundTruth[i], approximate[i])
	}
	return sum / float64(len(groundTruth))
}

// IsSorted reports whether results are in ascending (distance, id) order.
func IsSorted(results []index.SearchResult) bool {
	for i := 1; i < len(results); i++ {
		a, b := results[i-1], results[i]
		if a.Distance > b.Distance || (a.Distance == b.Distance && a.ID >= b.ID) {
			return false
		}
	}
	return true
}
