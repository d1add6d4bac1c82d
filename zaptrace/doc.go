// Package zaptrace emits armor pipeline telemetry through a zap logger.
//
// Reporter turns every retried-attempt DependencyTrace into a structured
// log entry, and Hooks mirrors the pipeline lifecycle events (retries,
// throttle rejections, attempt timeouts) so operators can follow a
// dependency's behavior without wiring a dedicated collector.
package zaptrace
