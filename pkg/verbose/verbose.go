package verbose

import (
	"encoding/hex"
	"strings"
	"sync/atomic"

	"github.com/dougsko/fmd/pkg/logging"
)

var enabled atomic.Bool

// SetEnabled sets the global verbose tracing flag
func SetEnabled(enable bool) {
	enabled.Store(enable)
}

// IsEnabled returns whether verbose tracing is enabled
func IsEnabled() bool {
	return enabled.Load()
}

// Printf logs a trace message if verbose tracing is enabled
func Printf(format string, args ...interface{}) {
	if enabled.Load() {
		logging.Infof("verbose", format, args...)
	}
}

// Dump logs a hex dump of a raw buffer if verbose tracing is enabled
func Dump(label string, data []byte) {
	if !enabled.Load() || len(data) == 0 {
		return
	}
	logging.Infof("verbose", "%s (%d bytes): %s", label, len(data),
		strings.ToUpper(hex.EncodeToString(data)))
}
