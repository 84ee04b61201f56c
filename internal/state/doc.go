// Package state holds the loaded country collection shared between the
// catalog refresher and the UI.
//
// The refresher calls Store.Update after each FetchAll; the UI and the detail
// resolver read copies through Snapshot, Countries and Lookup. A failed load
// keeps the previous collection and bumps ConsecutiveFailures, so the UI can
// show an offline badge while still browsing stale data.
package state
