package channel

import "fmt"

// Debugf writes a "[DEBUG] ..." line. Write errors are dropped: the debug
// console is best-effort.
func Debugf(c Channel, format string, args ...any) {
	_ = c.WriteLine("[DEBUG] " + fmt.Sprintf(format, args...))
}

// Errorf writes an "[ERROR] ..." line.
func Errorf(c Channel, format string, args ...any) {
	_ = c.WriteLine("[ERROR] " + fmt.Sprintf(format, args...))
}
