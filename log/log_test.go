package log

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestModuleHookRoutesToPerModuleFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "fed-log-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	hook := newModuleHook(dir)
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Data:    logrus.Fields{"module": "voting"},
		Time:    time.Now(),
		Level:   logrus.InfoLevel,
		Message: "poll approved",
	}
	require.NoError(t, hook.Fire(entry))

	matches, err := filepath.Glob(filepath.Join(dir, "voting.*"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestModuleHookDefaultsToGeneral(t *testing.T) {
	dir, err := ioutil.TempDir("", "fed-log-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	hook := newModuleHook(dir)
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Data:    logrus.Fields{},
		Time:    time.Now(),
		Level:   logrus.InfoLevel,
		Message: "no module tag",
	}
	require.NoError(t, hook.Fire(entry))

	matches, err := filepath.Glob(filepath.Join(dir, "general.*"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestInitFallsBackToInfoOnBadLevel(t *testing.T) {
	dir, err := ioutil.TempDir("", "fed-log-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	Init(dir, "not-a-real-level")
	require.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}

func TestModuleReturnsTaggedEntry(t *testing.T) {
	entry := Module("idlekicker")
	require.Equal(t, "idlekicker", entry.Data["module"])
}
