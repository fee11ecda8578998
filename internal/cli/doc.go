// Package cli implements the command line programs that generate a dataset,
// build an index over it, run a query batch and print a report.
//
// Usage:
//
//	ivf <n_samples> <n_queries> <n_dim> <top_k> [--config file.yaml] [--log-level level] [--seed n]
//	graph <n_samples> <n_queries> <n_dim> <top_k> [...]
package cli
