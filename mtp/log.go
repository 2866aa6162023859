package mtp

import (
	"github.com/hanwen/go-mtpd/log"
)

var (
	mtpLog  = log.NewChildLogger(log.Root, "mtp", false)
	dataLog = log.NewChildLogger(log.Root, "data", false)
)

// SetLoggers routes codec diagnostics and data dumps to the given
// subsystem loggers.
func SetLoggers(c *log.Children) {
	mtpLog = c.MTP
	dataLog = c.Data
}
