// Package cmd implements the command-line interface of eKV. The commands work
// directly on the storage location, no server is involved.
//
// The package is organized into several subpackages:
//
//   - records: Commands that read and maintain stored records (inspect, stats, purge)
//   - demo: A small world that persists its entities across runs
//   - util: Shared utilities for flags, configuration and output (internal use)
//
// See ekv --help for a list of all commands.
package cmd
