// Package logging provides structured logging for the Doorstep client.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the discovery engine and network clients. Logging
// is silent by default so CLI output stays clean; set DOORSTEP_LOG_LEVEL to
// enable it.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (raw datagrams, decode failures, sweeps)
//   - Info: Normal operations (backends starting, servers found/lost)
//   - Warn: Non-fatal issues (socket errors mid-session, slow subscribers)
//   - Error: Fatal issues (startup failures)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Server discovered",
//	    zap.String("backend", "multicast"),
//	    zap.String("host", "192.168.1.10"),
//	    zap.Int("port", 8080),
//	)
//
// # Specialized Logging
//
// Domain-specific helpers cover the discovery engine's common events:
//
//	logging.LogBackendEvent("multicast", "started")
//	logging.LogServerFound("mdns", "Office", "192.168.1.10", 8080)
//	logging.LogServerLost("multicast", "192.168.1.10", 8080, "stale")
//
// # Configuration
//
// Initialize logging at startup and flush on exit:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
