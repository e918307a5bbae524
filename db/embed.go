// Package db embeds the database schema so binaries can run migrations
// without access to the source tree.
package db

import _ "embed"

// Schema is the full DDL applied on startup. Statements are idempotent
// (CREATE TABLE IF NOT EXISTS) so re-running is safe.
//
//go:embed migrations/001_schema.sql
var Schema string
