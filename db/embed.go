// Package db embeds the SQL schema of the postgres cart backend.
package db

import _ "embed"

// Schema contains the DDL for the carts table.
//
//go:embed migrations/001_schema.sql
var Schema string
