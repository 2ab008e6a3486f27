//go:build windows

package cmd

import (
	"os"
	"syscall"
)

// shutdownSignals returns the OS signals to listen for graceful shutdown.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// sigTERM returns the termination signal sent by 'serve stop'. Windows
// delivers it as a hard kill.
func sigTERM() syscall.Signal { return syscall.SIGTERM }
