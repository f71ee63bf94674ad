package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log - общий логгер процесса. До Bootstrap работает с настройками logrus по умолчанию.
var Log = logrus.New()

// Bootstrap настраивает формат и уровень логирования
func Bootstrap(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	Log.SetReportCaller(lvl >= logrus.DebugLevel)
	Log.SetOutput(os.Stdout)
	Log.SetLevel(lvl)

	if err != nil {
		Log.Warnf("unknown log level %q, falling back to %s", level, lvl)
	}
}
