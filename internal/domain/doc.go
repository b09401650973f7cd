// Package domain contains the core entities of the notification pipeline:
// activity-log entries, notification delivery records, and the read models
// for tasks and user preferences. It holds the status machines and validation
// rules, independent of storage and transport concerns.
package domain
