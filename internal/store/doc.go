// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the notification pipeline's core logic, allowing the enqueue and delivery
// rules to remain independent of the database driver in use.
package store
