package build

import "fmt"

// Release is the build tag for this binary: "standard", "testing", or "dev".
// It is swapped by build-tag-specific files in a full release pipeline; this
// module only ships the standard build.
var Release = "standard"

// DEBUG is true when extra runtime assertions and verbose logging should be
// enabled. Left false for the standard build.
var DEBUG = false

// Critical logs a critical, unrecoverable error and panics. Reserved for
// invariant violations (the controller's self-check-failed and
// missing-key-for-active-denomination cases) — never for ordinary input
// errors.
func Critical(args ...interface{}) {
	panic("Critical error: " + fmt.Sprint(args...))
}
