// Package logger provides a structured logging interface for the event
// extraction pipeline.
//
// It wraps the zerolog library to provide a clean, easy-to-use API with
// support for:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Pretty console output
// - Optional file output alongside the console
// - Global logger instance for easy access
//
// Basic Usage:
//
//	import "igevents/pkg/logger"
//
//	// Initialize the global logger
//	cfg := &config.LoggingConfig{
//	    Level: "info",
//	    File:  "/var/log/igevents.log",
//	}
//	err := logger.Initialize(cfg)
//
//	// Use the global logger
//	log := logger.GetLogger()
//	log.Info("extraction started")
//	log.WithField("username", "lincolnhigh").Info("processing post")
//	log.WithError(err).Error("insert failed")
package logger
