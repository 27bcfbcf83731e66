// Package config defines configuration for the blobstream CLI.
//
// Configuration can be provided via, in increasing precedence:
//   - YAML configuration file (sizes like "8MiB", durations like "2s")
//   - A .env file, loaded into the environment
//   - Environment variables (BLOBSTREAM_ prefix)
//   - Command-line flags
//
// # Example
//
//	source: s3://my-bucket?region=us-east-1
//	object: backups/db.tar
//	chunk_size: 8MiB
//	concurrency: 16
//	retry:
//	  attempts: 5
//	  backoff: 1s
//	  max_backoff: 30s
package config
