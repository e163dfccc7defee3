package config

import (
	"context"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/appctx"
	"github.com/sirupsen/logrus"
)

var (
	logg *logrus.Logger
)

func GetLogger() *logrus.Logger {
	return logg
}

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logrus.WarnLevel)
	logg.SetOutput(os.Stdout)

	GetSettings()
}

// applyLogLevel sets the level from LOG_LEVEL. An unparseable value keeps
// the current level.
func applyLogLevel(raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	level, err := logrus.ParseLevel(raw)
	if err != nil {
		logg.WithField("LOG_LEVEL", raw).Warn("unknown log level; keeping " + logg.GetLevel().String())
		return
	}
	logg.SetLevel(level)
}

// LoggerFromContext attaches request-scoped fields carried in ctx.
func LoggerFromContext(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(logg)
	if ctx == nil {
		return entry
	}
	if v, ok := appctx.GetString(ctx, appctx.ContextKeyCorrelationId); ok && v != "" {
		entry = entry.WithField("correlation_id", v)
	}
	if v, ok := appctx.GetString(ctx, appctx.ContextKeyUsername); ok && v != "" {
		entry = entry.WithField("username", v)
	}
	return entry
}

func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	if data != nil {
		logger.WithFields(logrus.Fields{
			"module":   moduleName,
			"funcName": funcName,
			"context":  context,
			"data":     data,
		}).Error(err.Error())
	} else {
		logger.WithFields(logrus.Fields{
			"module":   moduleName,
			"funcName": funcName,
			"context":  context,
		}).Error(err.Error())
	}
}

// LogWarning records a non-fatal data quality problem (negative stock,
// skipped barcode repair, missing support rate).
func LogWarning(entry *logrus.Entry, moduleName string, funcName string, message string, fields logrus.Fields) {
	if entry == nil {
		entry = logrus.NewEntry(logg)
	}
	entry.WithFields(logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"kind":     "data_quality",
	}).WithFields(fields).Warn(message)
}
