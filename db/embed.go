// Package db carries the SQL migration files embedded into the binary, so a
// fresh deployment can bring its schema up without external tooling.
package db

import "embed"

// Migrations holds every migration file under migrations/, applied in
// lexical filename order.
//
//go:embed migrations/*.sql
var Migrations embed.FS
