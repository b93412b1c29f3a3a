package engine

import (
	"github.com/dabozzhub/pbj/internal/common"
)

// logPbj is shared by all engine components; stderr until configured.
var logPbj, _ = common.MakeLogger("stderr", 0, false)

// MakeLoggerEngine reconfigures the engine logger.
// Errors are duplicated to stderr when logging goes to a file.
func MakeLoggerEngine(logFile string, verbosity int64, duplicateToStderr bool) error {
	logger, err := common.MakeLogger(logFile, verbosity, duplicateToStderr)
	if err == nil {
		logPbj = logger
	}
	return err
}
