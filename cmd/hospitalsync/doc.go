/*
Command hospitalsync mirrors the CMS provider-data datasets tagged "Hospitals"
into a local directory or an S3 bucket, with normalized CSV headers.

Each run:
  - lists the metastore catalog and keeps the datasets of the configured theme
    that offer a CSV distribution
  - selects the datasets whose upstream modified date is newer than the one
    recorded for them by the last successful run (all of them on a first run)
  - downloads the selected files on a bounded worker pool, rewrites the header
    row to snake_case identifiers and streams the data rows through unchanged
  - records every success in the run metadata store, written once at the end
  - writes a JSON run report next to the metadata

Usage

	hospitalsync [run] [--output-dir D] [--state-path P] [--workers N] [--theme T] [--dry-run]
	hospitalsync status

Exit codes

	0  every selected dataset was stored, or nothing changed
	1  at least one dataset failed; the others were stored and recorded
	2  the run could not start or finish (configuration, metastore, metadata persist)

Configuration

Settings come from the environment, optionally from .env, .env.<ENVIRONMENT> and
.env.local in the working directory. Flags override the environment. The main
variables are METASTORE_URL, METASTORE_THEME, WORKERS, OUTPUT_DIR, STATE_PATH,
ADAPTER_STORAGE (filesystem, s3), ADAPTER_RUN_STATE (file, postgres) and
ADAPTER_METRICS (stdout, prometheus) with METRICS_PUSHGATEWAY_URL.
*/
package main
