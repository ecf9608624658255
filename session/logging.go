package session

import (
	"github.com/sirupsen/logrus"
)

// NewLogger returns a logger scoped to the compiler session, mirroring the
// "system"-scoped sub-logger pattern used for audit logging elsewhere in the
// pack: every call site builds its own logrus.Fields and logs through this
// entry rather than the bare *logrus.Logger.
func NewLogger(base *logrus.Logger) *logrus.Entry {
	if base == nil {
		base = logrus.New()
	}
	return base.WithField("component", "qcompiler")
}

// LogCompileStart records the start of one query's compilation.
func LogCompileStart(log *logrus.Entry, sql string) {
	log.WithFields(logrus.Fields{
		"event": "compile.start",
		"sql":   sql,
	}).Info("compiling query")
}

// LogCompileDone records a successful compilation, along with the number of
// tasks the MR task planner emitted.
func LogCompileDone(log *logrus.Entry, taskCount int) {
	log.WithFields(logrus.Fields{
		"event":     "compile.done",
		"taskCount": taskCount,
	}).Info("compiled query")
}

// LogCompileError records a failed compilation.
func LogCompileError(log *logrus.Entry, err error) {
	log.WithFields(logrus.Fields{
		"event": "compile.error",
		"error": err.Error(),
	}).Error("query compilation failed")
}

// LogCacheHit records a plan cache hit/miss for key.
func LogCacheHit(log *logrus.Entry, key string, hit bool) {
	log.WithFields(logrus.Fields{
		"event": "cache.lookup",
		"key":   key,
		"hit":   hit,
	}).Debug("plan cache lookup")
}
