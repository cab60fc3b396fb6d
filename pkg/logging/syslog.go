// Package logging renders logrus entries in the "<N>message" form systemd
// reads syslog priorities from on a service's stderr.
package logging

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// PriorityField, when present on an entry, overrides the priority derived
// from the logrus level. Needed for notice, which has no logrus level.
const PriorityField = "syslog_priority"

// Syslog priorities.
const (
	PriorityErr     = 3
	PriorityWarning = 4
	PriorityNotice  = 5
	PriorityInfo    = 6
	PriorityDebug   = 7
)

// Notice marks entries logged through the returned logger as notice priority.
// Log them at the info level.
func Notice(ll logrus.FieldLogger) logrus.FieldLogger {
	return ll.WithField(PriorityField, PriorityNotice)
}

// SyslogFormatter writes "<N>message key=value ..." lines.
type SyslogFormatter struct{}

func (f *SyslogFormatter) Format(e *logrus.Entry) ([]byte, error) {
	pri := PriorityInfo
	switch e.Level {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		pri = PriorityErr
	case logrus.WarnLevel:
		pri = PriorityWarning
	case logrus.InfoLevel:
		pri = PriorityInfo
	default:
		pri = PriorityDebug
	}
	if v, ok := e.Data[PriorityField].(int); ok {
		pri = v
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "<%d>%s", pri, e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		if k != PriorityField {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}
