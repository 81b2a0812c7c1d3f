// Copyright 2015 Ka-Hing Cheung
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package internal

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var mu sync.Mutex
var loggers = make(map[string]*logHandle)

var framePlaceHolder = runtime.Frame{Function: "???", File: "???", Line: 0}

// defaults applied to loggers created after the Set* calls below
var (
	curLevel  = logrus.InfoLevel
	curOutput io.Writer
	curLogID  string
	noColor   bool
	toFile    bool
)

type logHandle struct {
	logrus.Logger

	name     string
	logid    string
	pid      int
	lvl      *logrus.Level
	colorful bool
}

func (l *logHandle) Format(e *logrus.Entry) ([]byte, error) {
	lvl := e.Level
	if l.lvl != nil {
		lvl = *l.lvl
	}
	lvlStr := strings.ToUpper(lvl.String())
	if l.colorful {
		var color int
		switch lvl {
		case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
			color = 31 // RED
		case logrus.WarnLevel:
			color = 33 // YELLOW
		case logrus.InfoLevel:
			color = 34 // BLUE
		default: // logrus.TraceLevel, logrus.DebugLevel
			color = 35 // MAGENTA
		}
		lvlStr = fmt.Sprintf("\033[1;%dm%s\033[0m", color, lvlStr)
	}
	const timeFormat = "2006/01/02 15:04:05.000000"
	caller := e.Caller
	if caller == nil { // for unknown reason, sometimes e.Caller is nil
		caller = &framePlaceHolder
	}
	logid := l.logid
	if logid != "" {
		logid += " "
	}
	str := fmt.Sprintf("%s%v %s[%d] <%v>: %v [%s@%s:%d]",
		logid,
		e.Time.Format(timeFormat),
		l.name,
		l.pid,
		lvlStr,
		strings.TrimRight(e.Message, "\n"),
		MethodName(caller.Function),
		path.Base(caller.File),
		caller.Line)

	if len(e.Data) != 0 {
		str += " " + fmt.Sprint(e.Data)
	}
	if !strings.HasSuffix(str, "\n") {
		str += "\n"
	}
	return []byte(str), nil
}

// Returns a human-readable method name, removing internal markers added by Go
func MethodName(fullFuncName string) string {
	firstSlash := strings.Index(fullFuncName, "/")
	if firstSlash != -1 && firstSlash < len(fullFuncName)-1 {
		fullFuncName = fullFuncName[firstSlash+1:]
	}
	lastDot := strings.LastIndex(fullFuncName, ".")
	if lastDot == -1 || fullFuncName == "." {
		return fullFuncName
	}
	if lastDot == len(fullFuncName)-1 {
		return MethodName(fullFuncName[:lastDot])
	}
	method := fullFuncName[lastDot+1:]
	// avoid func1
	if strings.HasPrefix(method, "func") && len(method) > 4 && method[4] >= '0' && method[4] <= '9' {
		candidate := MethodName(fullFuncName[:lastDot])
		if candidate != "" {
			method = candidate
		}
	}
	// avoid init.3
	if len(method) == 1 && method[0] >= '0' && method[0] <= '9' {
		candidate := MethodName(fullFuncName[:lastDot])
		if candidate != "" {
			method = candidate
		}
	}
	return method
}

func newLogger(name string) *logHandle {
	l := &logHandle{Logger: *logrus.New(), name: name, pid: os.Getpid(), logid: curLogID}
	l.Formatter = l
	l.Level = curLevel
	if curOutput != nil {
		l.SetOutput(curOutput)
	} else {
		l.colorful = !noColor && isatty.IsTerminal(os.Stderr.Fd())
	}
	l.SetReportCaller(true)
	return l
}

// GetLogger returns a logger mapped to `name`
func GetLogger(name string) *logHandle {
	mu.Lock()
	defer mu.Unlock()

	if logger, ok := loggers[name]; ok {
		return logger
	}
	logger := newLogger(name)
	loggers[name] = logger
	return logger
}

// ParseLogLevel accepts the logrus level names, plus "warn".
func ParseLogLevel(s string) (logrus.Level, error) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q: use trace, debug, info, warn or error", s)
	}
	return lvl, nil
}

// SetLogLevel sets Level to all the loggers in the map
func SetLogLevel(lvl logrus.Level) {
	mu.Lock()
	defer mu.Unlock()
	curLevel = lvl
	for _, logger := range loggers {
		logger.Level = lvl
	}
}

func DisableLogColor() {
	mu.Lock()
	defer mu.Unlock()
	noColor = true
	for _, logger := range loggers {
		logger.colorful = false
	}
}

// SetOutFile sends all logs to a daily rotated file in dir. A link named
// name always points at the newest one.
func SetOutFile(dir, name string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir %s: %w", dir, err)
	}
	link := filepath.Join(dir, name)
	logf, err := rotatelogs.New(
		link+".%Y%m%d",
		rotatelogs.WithLinkName(link),
		rotatelogs.WithMaxAge(7*24*time.Hour),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", link, err)
	}
	SetOutput(logf)
	mu.Lock()
	toFile = true
	mu.Unlock()
	return nil
}

// LogsToFile reports whether SetOutFile is in effect.
func LogsToFile() bool {
	mu.Lock()
	defer mu.Unlock()
	return toFile
}

// SetOutput redirects every logger to w. Colors are off for anything but a
// terminal on stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	curOutput = w
	toFile = false
	for _, logger := range loggers {
		logger.SetOutput(w)
		logger.colorful = false
	}
}

func SetLogID(id string) {
	mu.Lock()
	defer mu.Unlock()
	curLogID = id
	for _, logger := range loggers {
		logger.logid = id
	}
}

// NewRunID returns a short random id tagging one invocation in logs and in
// shared backends.
func NewRunID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func GetDefaultLogDir() string {
	var defaultLogDir = "/var/log/compsize"
	switch runtime.GOOS {
	case "linux":
		if os.Getuid() == 0 {
			break
		}
		fallthrough
	default:
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return defaultLogDir
		}
		defaultLogDir = path.Join(homeDir, ".compsize")
	}
	return defaultLogDir
}
