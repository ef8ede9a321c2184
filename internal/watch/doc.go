// Package watch defines the catalog watcher's domain types, ports, and error kinds.
//
// A Topic is one watched search against the remote catalog. Each cycle fetches a fresh
// ProductMap for a topic, compares it with the persisted one using Diff, and hands the
// added products to a Notifier. Adapters for every port live in sibling packages under
// internal/.
package watch
