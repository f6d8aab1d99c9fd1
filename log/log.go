// Package log wires logrus to a per-module rotating file hook, the way the
// teacher node routes each subsystem's log lines to its own rotated file
// under the data directory's log folder.
package log

import (
	"path/filepath"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/sirupsen/logrus"
)

const (
	rotationTime = 86400 * time.Second
	maxAge       = 604800 * time.Second
)

var defaultFormatter = &logrus.TextFormatter{DisableColors: true, FullTimestamp: true}

// Init points logrus at logDir and parses level (e.g. "info", "debug").
// An unparseable level falls back to Info rather than failing node startup.
func Init(logDir, level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	logrus.AddHook(newModuleHook(logDir))
}

// moduleHook writes each entry to <logDir>/<module>.<date>, rotated daily
// and pruned after maxAge, mirroring the teacher's BtmHook.
type moduleHook struct {
	logDir string
	lock   sync.Mutex
}

func newModuleHook(logDir string) *moduleHook {
	return &moduleHook{logDir: logDir}
}

func (h *moduleHook) Fire(entry *logrus.Entry) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.write(entry)
}

func (h *moduleHook) write(entry *logrus.Entry) error {
	module := "general"
	if data, ok := entry.Data["module"]; ok {
		if name, ok := data.(string); ok {
			module = name
		}
	}

	path := filepath.Join(h.logDir, module)
	writer, err := rotatelogs.New(
		path+".%Y%m%d",
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(rotationTime),
	)
	if err != nil {
		return err
	}
	defer writer.Close()

	msg, err := defaultFormatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = writer.Write(msg)
	return err
}

func (h *moduleHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Module returns a logger pre-tagged with the given subsystem name, the
// field the moduleHook keys its rotated-file routing on.
func Module(name string) *logrus.Entry {
	return logrus.WithField("module", name)
}
