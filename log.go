package milpa

import "fmt"

type Logger interface {
	Print(v ...interface{})
}

type noopLogger struct{}

func (noopLogger) Print(v ...interface{}) {}

// logf formats a progress message for the model's logger.
func (model *Model) logf(format string, args ...interface{}) {
	model.mu.RLock()
	logger := model.logger
	model.mu.RUnlock()

	logger.Print(fmt.Sprintf(format, args...))
}
