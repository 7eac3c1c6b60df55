// Package pionlog routes pion's leveled logging into logger.Logger.
package pionlog

import (
	"fmt"

	"github.com/mediaroom/producer/producer/logger"
	"github.com/pion/logging"
)

// Factory implements logging.LoggerFactory. Every pion subsystem gets its
// own namespace under "pion".
type Factory struct {
	log logger.Logger
}

var _ logging.LoggerFactory = &Factory{}

func NewFactory(log logger.Logger) *Factory {
	return &Factory{
		log: log.WithNamespaceAppended("pion"),
	}
}

func (f *Factory) NewLogger(subsystem string) logging.LeveledLogger {
	return &leveled{
		log: f.log.WithNamespaceAppended(subsystem),
	}
}

type leveled struct {
	log logger.Logger
}

func (p *leveled) logf(level logger.Level, format string, args []interface{}) {
	if !p.log.IsLevelEnabled(level) {
		return
	}

	msg := fmt.Sprintf(format, args...)

	switch level {
	case logger.LevelTrace:
		p.log.Trace(msg, nil)
	case logger.LevelDebug:
		p.log.Debug(msg, nil)
	case logger.LevelInfo:
		p.log.Info(msg, nil)
	case logger.LevelWarn:
		p.log.Warn(msg, nil)
	case logger.LevelError:
		p.log.Error(msg, nil, nil)
	case logger.LevelUnknown, logger.LevelDisabled:
	}
}

func (p *leveled) Trace(msg string) { p.log.Trace(msg, nil) }
func (p *leveled) Debug(msg string) { p.log.Debug(msg, nil) }
func (p *leveled) Info(msg string)  { p.log.Info(msg, nil) }
func (p *leveled) Warn(msg string)  { p.log.Warn(msg, nil) }
func (p *leveled) Error(msg string) { p.log.Error(msg, nil, nil) }

func (p *leveled) Tracef(format string, args ...interface{}) {
	p.logf(logger.LevelTrace, format, args)
}

func (p *leveled) Debugf(format string, args ...interface{}) {
	p.logf(logger.LevelDebug, format, args)
}

func (p *leveled) Infof(format string, args ...interface{}) {
	p.logf(logger.LevelInfo, format, args)
}

func (p *leveled) Warnf(format string, args ...interface{}) {
	p.logf(logger.LevelWarn, format, args)
}

func (p *leveled) Errorf(format string, args ...interface{}) {
	p.logf(logger.LevelError, format, args)
}
