package store

import (
	"github.com/jmoiron/sqlx"
)

// DBTX abstracts the database access layer. It is satisfied by both *sqlx.DB
// and *sqlx.Tx, allowing store implementations to run against a connection
// pool or inside a transaction without knowing which. Rebind keeps queries
// portable across the sqlite and postgres placeholder styles.
type DBTX interface {
	sqlx.ExtContext
}
