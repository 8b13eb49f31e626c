package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

const KVEntries = "01_kv_entries.up.sql"
