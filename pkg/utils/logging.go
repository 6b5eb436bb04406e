package utils

import (
	"fmt"
	"time"
)

// TimestampedPrintfLn prints a progress line with a timestamp prefix and a
// trailing newline. Tool progress goes to stdout; errors go through log.
func TimestampedPrintfLn(format string, args ...interface{}) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Printf("[%s] %s\n", timestamp, fmt.Sprintf(format, args...))
}
