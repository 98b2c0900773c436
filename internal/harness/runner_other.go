//go:build !unix

package harness

import "os/exec"

// setProcessGroup is a no-op where process groups are unavailable; a timeout
// then kills the direct child only.
func setProcessGroup(cmd *exec.Cmd) {}
