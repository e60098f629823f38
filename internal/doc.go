// Package internal documents the placement portal server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, problem responses and routing
// - domain: users, files, recruitment, events, notifications, reports
// - storage: Postgres repositories, migrations and object stores (R2/S3, disk)
// - jobs: River workers for email delivery and maintenance
// - auth, audit, config, email, metrics, telemetry, sanitize, validation: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
