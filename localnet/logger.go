package localnet

import (
	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

var _ badgerdb.Logger = (*badgerLogger)(nil)

// badgerLogger routes badger's printf-style logging into zap.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func newBadgerLogger(l *zap.Logger) *badgerLogger {
	return &badgerLogger{s: l.Named("badger").Sugar()}
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.s.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.s.Warnf(format, args...)
}

// Infof is logged at debug: badger reports compactions and flushes at info.
func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.s.Debugf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.s.Debugf(format, args...)
}
