// Package log provides logging configuration helpers for cloudsync.
package log

import (
	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// NewFormatter returns the logrus formatter used across the application.
// JSON output is meant for log collectors, text for interactive use.
func NewFormatter(json bool) logrus.Formatter {
	if json {
		return &logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
		}
	}
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: timestampFormat,
	}
}
