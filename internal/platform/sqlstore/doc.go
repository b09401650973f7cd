// Package sqlstore implements the store interfaces on a relational database
// reached through sqlx. The same implementation serves both supported
// drivers, sqlite (modernc, the self-hosted default) and postgres (pgx),
// by writing queries with ? placeholders and rebinding them per driver.
// Schema setup is handled by embedded goose migrations, one set per dialect.
package sqlstore
