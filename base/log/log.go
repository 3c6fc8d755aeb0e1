// Copyright 2025 placerec Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"net/url"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/juju/errors"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"

	timeLayout = "2006-01-02 15:04:05.999999"
)

var logger = zap.Must(zap.NewDevelopment())

// Logger returns the process-wide logger.
func Logger() *zap.Logger {
	return logger
}

// TaskLogger tags every line with the task and the worker executing it.
func TaskLogger(task, worker string) *zap.Logger {
	return logger.With(zap.String("task", task), zap.String("worker", worker))
}

// CloseLogger silences everything below fatal. Used by tests and one-shot commands.
func CloseLogger() {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.FatalLevel)
	logger = zap.Must(cfg.Build())
}

func AddFlags(flagSet *pflag.FlagSet) {
	flagSet.String("log-path", "", "path of log file")
	flagSet.String("log-level", "info", "minimum level of log lines (debug, info, warn, error)")
	flagSet.String("log-format", FormatJSON, "encoding of log lines (json or console)")
	flagSet.Int("log-max-size", 100, "maximum size in megabytes of the log file")
	flagSet.Int("log-max-age", 0, "maximum number of days to retain old log files")
	flagSet.Int("log-max-backups", 0, "maximum number of old log files to retain")
}

// options collects the logging flags. --debug wins over --log-level and
// --log-format.
type options struct {
	level      zapcore.Level
	format     string
	path       string
	maxSize    int
	maxAge     int
	maxBackups int
}

func parseOptions(flagSet *pflag.FlagSet, debug bool) (options, error) {
	var opts options
	levelText, _ := flagSet.GetString("log-level")
	level, err := zapcore.ParseLevel(levelText)
	if err != nil {
		return opts, errors.NewNotValid(err, "log level")
	}
	opts.level = level
	opts.format, _ = flagSet.GetString("log-format")
	if opts.format != FormatJSON && opts.format != FormatConsole {
		return opts, errors.NotValidf("log format %q", opts.format)
	}
	if debug {
		opts.level = zapcore.DebugLevel
		opts.format = FormatConsole
	}
	if flagSet.Changed("log-path") {
		opts.path, _ = flagSet.GetString("log-path")
		opts.maxSize, _ = flagSet.GetInt("log-max-size")
		opts.maxAge, _ = flagSet.GetInt("log-max-age")
		opts.maxBackups, _ = flagSet.GetInt("log-max-backups")
	}
	return opts, nil
}

func (opts options) encoder() zapcore.Encoder {
	if opts.format == FormatConsole {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
		return zapcore.NewConsoleEncoder(cfg)
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	return zapcore.NewJSONEncoder(cfg)
}

func (opts options) writer() zapcore.WriteSyncer {
	writers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if opts.path != "" {
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.path,
			MaxSize:    opts.maxSize,
			MaxBackups: opts.maxBackups,
			MaxAge:     opts.maxAge,
		}))
	}
	return zap.CombineWriteSyncers(writers...)
}

// SetLogger replaces the process-wide logger according to the logging flags.
// Invalid flags keep the current logger and are reported through it.
func SetLogger(flagSet *pflag.FlagSet, debug bool) {
	opts, err := parseOptions(flagSet, debug)
	if err != nil {
		logger.Error("invalid logging flags", zap.Error(err))
		return
	}
	logger = zap.New(zapcore.NewCore(opts.encoder(), opts.writer(), opts.level))
}

const mysqlPrefix = "mysql://"

// RedactDBURL masks credentials in a store URL so it can be logged.
func RedactDBURL(rawURL string) string {
	if dsn, ok := strings.CutPrefix(rawURL, mysqlPrefix); ok {
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return rawURL
		}
		cfg.User = mask(cfg.User)
		cfg.Passwd = mask(cfg.Passwd)
		return mysqlPrefix + cfg.FormatDSN()
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.User == nil {
		return rawURL
	}
	password, _ := parsed.User.Password()
	parsed.User = url.UserPassword(mask(parsed.User.Username()), mask(password))
	return parsed.String()
}

func mask(s string) string {
	return strings.Repeat("x", len(s))
}

// GetErrorHandler routes opentelemetry failures to the process-wide logger.
func GetErrorHandler() otel.ErrorHandler {
	return otel.ErrorHandlerFunc(func(err error) {
		logger.Error("opentelemetry failure", zap.Error(err))
	})
}
