package persist

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger returns a logger scoped to a single component (e.g. "keystore",
// "ledger", "rotation"), tagged on every entry it emits. Every long-lived
// piece of the mint takes one of these rather than writing to a package
// global, so tests can swap in their own.
func NewLogger(component string) *logrus.Entry {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return log.WithField("component", component)
}
