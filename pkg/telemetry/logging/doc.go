// Package logging provides structured logging for the Concord agent bus.
//
// The Logger wraps log/slog with JSON or text output and optional
// redaction of sensitive values. Redaction is implemented as a handler
// wrapper, so loggers derived with With or Component keep it, including
// component loggers built from slog.Default() after SetDefault.
//
// # Redaction
//
// When enabled, the redactor masks:
//
//   - Bearer tokens and JWTs appearing in attribute values
//   - Values of keys that look like credentials (token, secret, password)
//   - Full constitutional hashes, trimmed to their 8-character sanitized
//     prefix so complete hashes never appear in log output
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", Redact: true})
//	if err != nil {
//	    return err
//	}
//	logger.SetDefault()
//
//	busLog := logger.Component("bus")
//	busLog.Info("message accepted", "message_id", msg.ID)
package logging
