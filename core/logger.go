package core

// Logger is any service that can log messages.
// expected args: error, map[string]interface{}, Person
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person is implemented by log arguments identifying the device user a log entry is about.
type Person interface {
	LogPerson() (id, username, email string)
}

// NopLogger discards everything (except Fatal, which still has nothing to exit).
type NopLogger struct{}

var _ Logger = NopLogger{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}
