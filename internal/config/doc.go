// Package config handles configuration loading for groupme-backup.
//
// # Overview
//
// Configuration is read once at startup into an immutable Config that is
// passed to the store and the sync driver. Sources, highest precedence first:
//
//  1. Environment variables
//  2. Optional config file named by GROUPME_BACKUP_CONFIG
//  3. Built-in defaults
//
// # Environment Variables
//
//	DATABASE         path to the SQLite file (required)
//	DATABASE_DRIVER  sqlite (default, pure Go) or sqlite3 (cgo)
//	GROUP_ID         numeric GroupMe group id (required)
//	TOKEN            GroupMe API token (required)
//	API_URL          API base URL, default https://api.groupme.com
//	API_RATE         max page requests per second, 0 (default) for no limit
//	LOG_LEVEL        debug, info, warn, error (case-insensitive)
//	LOG_FORMAT       json, text, or color
//
// # Configuration File
//
// Files ending in .toml are parsed as TOML; anything else as YAML:
//
//	database:
//	  path: "/var/lib/groupme-backup/backup.db"
//	groupme:
//	  group_id: "1234567"
//	  token: "${GROUPME_TOKEN}"
//	  requests_per_second: 2
//	logging:
//	  level: "debug"
//	  format: "json"
//
// # Environment Variable Expansion
//
// File values can reference environment variables with ${VAR_NAME}. Unset
// variables expand to the empty string.
//
// # Validation
//
// With RequireAll, Load fails if the database path, group id, or token is
// missing, if the group id is not numeric, if the driver, API URL, or log
// level is unknown, or if API_RATE is negative or not a number.
//
// With RequireLocal, used by status and migrate, only the database path,
// driver, and log level are checked. GROUP_ID and TOKEN may be unset.
//
// The database path is resolved to an absolute path.
package config
