package kdbipc

import "github.com/sirupsen/logrus"

// _lg is the package logger, mirroring the teacher's package-level
// logger and SetLogger hook. A caller that never calls SetLogger gets
// a default logrus.Logger writing to stderr at InfoLevel.
var _lg = logrus.New()

// SetLogger replaces the package logger used by sessions, transports
// and handshakes for lifecycle and fault logging.
func SetLogger(lg *logrus.Logger) {
	if lg != nil {
		_lg = lg
	}
}
