package logging

import (
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
)

type waLogger struct {
	s *zap.SugaredLogger
}

// WALogger routes whatsmeow's logging through zap.
func WALogger(logger *zap.Logger) waLog.Logger {
	return &waLogger{s: logger.Named("whatsmeow").Sugar()}
}

func (l *waLogger) Debugf(msg string, args ...interface{}) { l.s.Debugf(msg, args...) }
func (l *waLogger) Infof(msg string, args ...interface{})  { l.s.Infof(msg, args...) }
func (l *waLogger) Warnf(msg string, args ...interface{})  { l.s.Warnf(msg, args...) }
func (l *waLogger) Errorf(msg string, args ...interface{}) { l.s.Errorf(msg, args...) }

func (l *waLogger) Sub(module string) waLog.Logger {
	return &waLogger{s: l.s.Named(module)}
}
