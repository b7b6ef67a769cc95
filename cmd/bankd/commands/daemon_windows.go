//go:build windows

package commands

import "fmt"

func isProcessRunning(pidPath string) (int, bool) {
	return 0, false
}

func startDaemon() error {
	return fmt.Errorf("daemon mode is not supported on Windows, use 'bankd start --foreground'")
}
