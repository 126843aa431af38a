// Package storage opens and migrates the relational database backing the
// service. Postgres is the production driver; sqlite3 is supported for local
// development and tests.
package storage
