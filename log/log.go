package log

import (
	"io"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Root = &logrus.Logger{
	Out:   os.Stdout,
	Level: logrus.InfoLevel,
	Formatter: &prefixed.TextFormatter{
		DisableColors: func() bool {
			term, ok := os.LookupEnv("TERM")
			return term == "" || !ok
		}(),
		ForceFormatting: true,
		TimestampFormat: "2006-01-02 15:04:05",
	},
	Hooks:    make(logrus.LevelHooks),
	ExitFunc: os.Exit,
}

// FileOptions configures the rotating log file that is written next to
// stdout.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Setup applies the level and, when a path is given, tees the output
// into a rotating file. The returned closer flushes that file.
func Setup(level string, file FileOptions) (io.Closer, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	Root.SetLevel(lvl)

	if file.Path == "" {
		return io.NopCloser(nil), nil
	}

	rotate := &lumberjack.Logger{
		Filename:   file.Path,
		MaxSize:    file.MaxSizeMB,
		MaxBackups: file.MaxBackups,
		MaxAge:     file.MaxAgeDays,
		Compress:   file.Compress,
	}
	Root.SetOutput(io.MultiWriter(os.Stdout, rotate))
	return rotate, nil
}

// ChildLogger tags every line with a subsystem prefix and filters on
// its own level, independently of the root.
type ChildLogger struct {
	parent *logrus.Logger
	prefix string
	level  logrus.Level
}

func NewChildLogger(parent *logrus.Logger, prefix string, debug bool) *ChildLogger {
	lc := &ChildLogger{
		parent: parent,
		prefix: prefix,
	}
	lc.SetDebug(debug)
	return lc
}

func (l *ChildLogger) SetDebug(debug bool) {
	if debug {
		l.level = logrus.DebugLevel
	} else {
		l.level = logrus.InfoLevel
	}
}

func (l *ChildLogger) IsDebug() bool {
	return l.level >= logrus.DebugLevel
}

func (l *ChildLogger) entry(level logrus.Level) *logrus.Entry {
	if l.level < level {
		return nil
	}
	return l.parent.WithField("prefix", l.prefix)
}

// WithField returns an entry carrying the prefix and one extra field.
func (l *ChildLogger) WithField(key string, value interface{}) *logrus.Entry {
	return l.parent.WithField("prefix", l.prefix).WithField(key, value)
}

func (l *ChildLogger) Debug(args ...interface{}) {
	if e := l.entry(logrus.DebugLevel); e != nil {
		e.Debug(args...)
	}
}

func (l *ChildLogger) Info(args ...interface{}) {
	if e := l.entry(logrus.InfoLevel); e != nil {
		e.Info(args...)
	}
}

func (l *ChildLogger) Warning(args ...interface{}) {
	if e := l.entry(logrus.WarnLevel); e != nil {
		e.Warning(args...)
	}
}

func (l *ChildLogger) Error(args ...interface{}) {
	if e := l.entry(logrus.ErrorLevel); e != nil {
		e.Error(args...)
	}
}

func (l *ChildLogger) Debugf(format string, args ...interface{}) {
	if e := l.entry(logrus.DebugLevel); e != nil {
		e.Debugf(format, args...)
	}
}

func (l *ChildLogger) Infof(format string, args ...interface{}) {
	if e := l.entry(logrus.InfoLevel); e != nil {
		e.Infof(format, args...)
	}
}

func (l *ChildLogger) Warningf(format string, args ...interface{}) {
	if e := l.entry(logrus.WarnLevel); e != nil {
		e.Warningf(format, args...)
	}
}

func (l *ChildLogger) Errorf(format string, args ...interface{}) {
	if e := l.entry(logrus.ErrorLevel); e != nil {
		e.Errorf(format, args...)
	}
}

// Children holds one logger per subsystem of the daemon.
type Children struct {
	MTP       *ChildLogger
	Data      *ChildLogger
	Transport *ChildLogger
	DB        *ChildLogger
	Monitor   *ChildLogger
}

type DebugFlags struct {
	MTP       bool
	Data      bool
	Transport bool
	DB        bool
	Monitor   bool
}

func PrepareChildren(parent *logrus.Logger, debug DebugFlags) *Children {
	return &Children{
		MTP:       NewChildLogger(parent, "mtp", debug.MTP),
		Data:      NewChildLogger(parent, "data", debug.Data),
		Transport: NewChildLogger(parent, "transport", debug.Transport),
		DB:        NewChildLogger(parent, "db", debug.DB),
		Monitor:   NewChildLogger(parent, "monitor", debug.Monitor),
	}
}

// Quiet returns children with all debug output off.
func Quiet() *Children {
	return PrepareChildren(Root, DebugFlags{})
}

func HTTPLogHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			Root.WithField("prefix", "http").Infof("%s %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		}()
		next.ServeHTTP(w, r)
	})
}
