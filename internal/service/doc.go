// Package service contains the application-level use cases of the
// notification core. It orchestrates interactions between domain objects and
// stores (defined in internal/store) without depending on any storage or
// transport implementation.
//
// Two services make up the layer:
//
//   - ActivityService is the write path: it records task mutations in the
//     activity log and, in the same transaction, fans them out into queued
//     notification records via the enqueuer. It also serves the per-task
//     activity feed.
//
//   - NotificationService is the administrative surface of the delivery
//     queue: inspection by status, counts by status, and retention pruning
//     of delivered records.
//
// Services return typed errors wrapping the underlying cause; the API layer
// maps them (and the store sentinels they wrap) onto HTTP status codes.
package service
