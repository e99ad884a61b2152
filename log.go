package mysql

import (
	"github.com/sirupsen/logrus"
)

// logger is the package-wide structured logger. It defaults to the
// logrus standard logger at Warn level so an embedding application stays
// quiet unless it opts in. Credentials are never logged; auth code only
// reports plugin names and derived-hash lengths.
var logger = func() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}()

// SetLogger replaces the package logger. Passing nil restores the
// default.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		l = logrus.New()
		l.SetLevel(logrus.WarnLevel)
	}
	logger = l
}

func connFields(c *Conn) logrus.Fields {
	return logrus.Fields{
		"conn_id": c.connectionId,
		"addr":    c.cfg.address,
	}
}
