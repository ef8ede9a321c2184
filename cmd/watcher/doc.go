// Package main hosts the catalog watcher entrypoint.
//
// Architecture overview:
//   - Scheduler: internal/scheduler baselines never-seen topics at startup (no notifications), runs one
//     cycle over already-initialized topics, then a full cycle every watch.interval_minutes via robfig/cron.
//     Cycles never overlap; topics run one after another.
//   - Fetch: internal/fetcher/subprocess launches the external crawler once per topic with the search URL,
//     reads the JSON array it prints on stdout, and absolutizes product URLs. Non-zero exit, timeout, or
//     bad output fails that topic only.
//   - State: internal/state keeps the last snapshot per topic as JSON on the configured blob backend
//     (local directory, memory, GCS, or Postgres). Topic keys are the SHA-256 of keyword and category.
//   - Notify: internal/notifier/webhook posts added products as embed cards, at most ten per message,
//     in order. State is saved before delivery so a failed delivery is never resent.
//   - Ops: with server.enabled, internal/api serves health, Prometheus metrics, the watchlist, the last
//     cycle report, and a POST to start a cycle.
//
// Quick checklist:
//   - Configure via YAML (-config), a .env file (-env), WATCHER_* variables (e.g. WATCHER_WEBHOOK_URL), or
//     the single-watch NOTIFY_KEYWORD / NOTIFY_CATEGORY / NOTIFY_WEBHOOK_URL variables.
//   - Run locally: go run ./cmd/watcher -config config.yaml
//   - SIGINT/SIGTERM stops the scheduler, kills an in-flight crawler, and exits 0.
package main
