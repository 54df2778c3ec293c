package safe

import (
	"RProject/logger"
)

// SafeGo starts a goroutine that recovers from panic so a single bad
// handler cannot take the process down.
func SafeGo(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[SafeGo] panic recovered: %v", r)
			}
		}()
		f()
	}()
}
