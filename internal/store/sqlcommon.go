package store

// schemaStatements are shared, nearly verbatim between the sqlite and
// postgres backends: both persist the same two tables described in
// SPEC_FULL.md §3/§4.L. Dialect differences (upsert syntax, placeholder
// style) live in the per-driver files; the table shape does not.
const (
	createNoncesTableSQLite = `
CREATE TABLE IF NOT EXISTS elp_nonces (
	nonce TEXT PRIMARY KEY,
	first_seen_ms INTEGER NOT NULL
)`

	createFailuresTableSQLite = `
CREATE TABLE IF NOT EXISTS elp_failures (
	fingerprint TEXT PRIMARY KEY,
	count INTEGER NOT NULL,
	window_start_ms INTEGER NOT NULL
)`

	createNoncesTablePostgres = `
CREATE TABLE IF NOT EXISTS elp_nonces (
	nonce TEXT PRIMARY KEY,
	first_seen_ms BIGINT NOT NULL
)`

	createFailuresTablePostgres = `
CREATE TABLE IF NOT EXISTS elp_failures (
	fingerprint TEXT PRIMARY KEY,
	count INTEGER NOT NULL,
	window_start_ms BIGINT NOT NULL
)`
)
