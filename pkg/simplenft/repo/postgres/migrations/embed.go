package migrations

import "embed"

// FS contains the embedded PostgreSQL migrations for the nft store.
//
//go:embed *.sql
var FS embed.FS
