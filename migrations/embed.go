// Package migrations содержит goose-миграции схемы леджера
package migrations

import "embed"

// FS встраивается в бинарник, чтобы миграции накатывались при старте
//
//go:embed *.sql
var FS embed.FS
