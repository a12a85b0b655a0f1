//go:build windows

package audit

// checkDiskSpace is not implemented on Windows; appends proceed unchecked.
func (l *Logger) checkDiskSpace() error {
	return nil
}
