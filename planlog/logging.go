// Package planlog provides the planner's structured logging facility.
// It implements stream-split output routing (errors to stderr, everything
// else to stdout) on top of logrus, matching how the rest of the ambient
// stack handles containerized log collection.
package planlog

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes formatted log lines to stderr or stdout based on
// level, so orchestrators can treat the two streams with different priority
// without the planner needing to know anything about its deployment target.
type OutputSplitter struct{}

// Write implements io.Writer. It inspects the formatted line for the
// logrus "level=error" marker and routes accordingly.
func (s *OutputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the package-wide logrus instance used when callers don't build
// their own via NewLogger. It is safe for concurrent use.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}
