// Package migrations はPostgreSQLのスキーマ定義を埋め込む
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
