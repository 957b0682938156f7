// Package logging provides structured logging for the bridge.
//
// This package wraps Go's log/slog to provide JSON-formatted logs tagged
// with the feature, query token and host frame that produced them, so a run
// can be reconstructed after the fact with [ReadEntries] and [Filter].
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Native calls run on
// worker goroutines and callbacks on the main goroutine; both log through
// child loggers that share one [RotatingWriter].
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(dir, "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	flog := logger.WithFeature("barcode")
//	flog.WithQuery(token).Warn("poll failed", "code", code.String())
//
// # Levels
//
// Transient native polling failures are logged at WARN, missing native
// symbols at ERROR, per-tick activity at DEBUG.
//
// # Reading Logs Back
//
//	entries, err := logging.ReadEntries(dir)
//	warnings := logging.Filter{Level: "WARN", Feature: "barcode"}.Apply(entries)
//	logging.WriteText(os.Stdout, warnings)
package logging
