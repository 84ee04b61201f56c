// Package config handles loading and parsing the atlas configuration file.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/atlas/config.toml (default)
//  3. If the config file doesn't exist, fall back to hardcoded defaults
//  4. If the file exists but fields are missing/empty, use defaults
//
// # Default Values
//
//   - API base URL: https://restcountries.com/v3.1
//   - Data directory: ~/.local/share/atlas
//   - Store: <data_dir>/atlas.db
//   - Log file: <data_dir>/atlas.log
//   - Request timeout: 10s
//   - Search debounce: 400ms
//   - Catalog refresh: every 60 minutes
//   - Rate limit: 5 requests per second
//
// # TOML Format
//
//	api_base_url = "https://restcountries.com/v3.1"
//	data_dir = "~/.local/share/atlas"
//	request_timeout = "10s"
//	search_debounce_ms = 400
//	refresh_minutes = 60
//	requests_per_second = 5
//	metrics_addr = "127.0.0.1:9464"
//	log_level = "info"
//	maps_embed_key = ""
//
// All fields are optional. Tilde expansion is performed on data_dir.
//
// # Error Handling
//
// Load returns errors for:
//   - Path expansion failures (e.g., cannot determine home directory)
//   - File read errors (except os.ErrNotExist, which triggers defaults)
//   - TOML parsing errors, including an unparsable request_timeout
//
// Missing config files are NOT an error. atlas works against the public
// REST Countries API without any configuration.
package config
