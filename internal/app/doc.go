// Package app is the composition root for atlas.
//
// # Overview
//
// Open loads the configuration and builds every long-lived collaborator once:
// the logger, the Prometheus registry, the REST Countries client, the
// key-value store, the session and the detail resolver. The resulting App is
// handed explicitly to the TUI (Run) or to the headless commands
// (Search, Show, Login, Favorites and friends). Nothing is global.
//
// # Data Flow
//
//	┌──────────────┐
//	│   Open()     │ Wire collaborators
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()           Read ~/.config/atlas/config.toml
//	       ├─────> logging.New()           JSON log file under data_dir
//	       ├─────> restcountries.NewClient Rate limited HTTP client
//	       ├─────> kv.Open() / kv.NewMemory()
//	       └─────> session.Restore()       Reload the last session
//
//	App.Run():
//	┌─────────────────────────────────────────┐
//	│ errgroup                                │
//	│  ├─> runRefresher  FetchAll into state  │
//	│  ├─> metrics server (optional)          │
//	│  └─> ui.Run        blocks until quit    │
//	└─────────────────────────────────────────┘
//
// # Refresh Behavior
//
// The refresher loads the full catalog immediately and then every
// refresh_minutes. Failed loads are retried with exponential backoff starting
// at two seconds and capped at thirty. The UI keeps browsing by remote lookups
// while no catalog is loaded.
//
// # Error Handling
//
// Configuration, logger, client and store failures are returned from Open.
// Catalog failures are recorded in the state store and surface as the
// "API error" and "OFFLINE" header states. Listing failures from the headless
// commands come back as *SearchError carrying the user-facing message.
package app
