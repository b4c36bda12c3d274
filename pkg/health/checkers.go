package health

import (
	"context"
	"fmt"
	"runtime"
)

// GoroutineCountCheck fails when the process holds more goroutines than the
// threshold, a cheap leak canary.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return fmt.Errorf("too many goroutines: %d > %d", n, threshold)
		}
		return nil
	}
}
