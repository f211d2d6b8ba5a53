package logsvc

import (
	"fmt"
	"os"
	"sort"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/trezcool/schoolconnect/core"
)

// Logger writes every entry to zap and reports it to rollbar when enabled.
type Logger struct {
	zap     *zap.Logger
	rollbar bool
}

var _ core.Logger = (*Logger)(nil)

// New builds the application Logger from the configuration.
func New(conf *core.Config) (*Logger, error) {
	zl, err := NewZapLogger(conf.Log.Level, conf.Log.Format, conf.AppName)
	if err != nil {
		return nil, err
	}
	return NewLogger(zl, conf), nil
}

// NewLogger wraps `zl`. Rollbar is only enabled outside debug/test mode, with a token.
func NewLogger(zl *zap.Logger, conf *core.Config) *Logger {
	enabled := conf.RollbarToken != "" && !conf.Debug && !conf.TestMode
	if enabled {
		rollbar.SetToken(conf.RollbarToken)
		rollbar.SetEnvironment(conf.Env)
		if host, err := os.Hostname(); err == nil {
			rollbar.SetServerHost(host)
		}
		rollbar.SetCodeVersion(conf.Build)
		rollbar.SetStackTracer(errors.StackTracer)
	}
	rollbar.SetEnabled(enabled)
	return &Logger{zap: zl, rollbar: enabled}
}

func (l *Logger) Zap() *zap.Logger { return l.zap }

func (l *Logger) Sync() error { return l.zap.Sync() }

// expected fmt: msg | error, map[string]interface{}, core.Person
func (l *Logger) prepare(msg string, args []interface{}) ([]zap.Field, []interface{}) {
	var (
		personSet bool
		errCount  int
	)
	fields := make([]zap.Field, 0, len(args))
	rbArgs := make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)

	for i, arg := range args {
		switch a := arg.(type) {
		case nil:
		case core.Person:
			id, uname, email := a.LogPerson()
			if !personSet { // only set one Person
				if l.rollbar {
					rollbar.SetPerson(id, uname, email)
				}
				fields = append(fields, zap.String("username", uname))
				personSet = true
			}
		case error:
			if errCount == 0 {
				fields = append(fields, zap.Error(a))
			} else {
				fields = append(fields, zap.NamedError(fmt.Sprintf("error%d", errCount), a))
			}
			errCount++
			rbArgs = append(rbArgs, a)
		case map[string]interface{}:
			keys := make([]string, 0, len(a))
			for k := range a {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fields = append(fields, zap.Any(k, a[k]))
			}
			rbArgs = append(rbArgs, a)
		default:
			fields = append(fields, zap.Any(fmt.Sprintf("arg%d", i), a))
		}
	}
	if l.rollbar && !personSet {
		rollbar.ClearPerson()
	}
	return fields, rbArgs
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	fields, rbArgs := l.prepare(msg, args)
	if l.rollbar {
		rollbar.Debug(rbArgs...)
	}
	l.zap.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	fields, rbArgs := l.prepare(msg, args)
	if l.rollbar {
		rollbar.Info(rbArgs...)
	}
	l.zap.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	fields, rbArgs := l.prepare(msg, args)
	if l.rollbar {
		rollbar.Warning(rbArgs...)
	}
	l.zap.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	fields, rbArgs := l.prepare(msg, args)
	if l.rollbar {
		rollbar.Error(rbArgs...)
	}
	l.zap.Error(msg, fields...)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	fields, rbArgs := l.prepare(msg, args)
	if l.rollbar {
		rollbar.Critical(rbArgs...)
		rollbar.Wait()
	}
	l.zap.Fatal(msg, fields...)
}
