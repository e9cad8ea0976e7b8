// Package logging provides a small leveled, structured logger, generalized
// from internal/pkg/logging/logger.go to accept fields at any call site
// rather than a single global.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/coreledger/engine/internal/config"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

type Fields map[string]interface{}

type Logger struct {
	level  Level
	format string
	out    *log.Logger
}

type entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func New(cfg config.LoggingConfig) *Logger {
	return &Logger{
		level:  parseLevel(cfg.Level),
		format: cfg.Format,
		out:    log.New(os.Stdout, "", 0),
	}
}

func parseLevel(levelStr string) Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return DEBUG
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

func (l *Logger) Debug(msg string, fields Fields) { l.log(DEBUG, msg, fields) }
func (l *Logger) Info(msg string, fields Fields)  { l.log(INFO, msg, fields) }
func (l *Logger) Warn(msg string, fields Fields)  { l.log(WARN, msg, fields) }

// Error takes the triggering error directly, the same shape as
// internal/pkg/logging.Error, rather than folding it into fields at every
// call site.
func (l *Logger) Error(msg string, err error, fields Fields) {
	if fields == nil {
		fields = Fields{}
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.log(ERROR, msg, fields)
}

func (l *Logger) log(level Level, message string, fields Fields) {
	if level < l.level {
		return
	}

	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level.String(),
		Message:   message,
		Fields:    fields,
	}

	var line string
	if l.format == "json" {
		data, _ := json.Marshal(e)
		line = string(data)
	} else {
		line = fmt.Sprintf("[%s] %s %s", e.Timestamp, e.Level, e.Message)
		if len(fields) > 0 {
			data, _ := json.Marshal(fields)
			line += " " + string(data)
		}
	}
	l.out.Println(line)
}
