// Package logging provides structured logging for AVnet Core.
//
// It wraps log/slog with JSON or text output, level filtering and default
// service/version fields. *Logger satisfies the small Logger interfaces the
// domain packages accept (av.Logger, driver.Logger and friends), so one
// configured logger is threaded through the whole process.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("room powered on", "room_id", 3)
//
// Never log panel secrets, JWTs or MQTT passwords.
package logging
