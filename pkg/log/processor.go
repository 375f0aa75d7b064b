package log

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/mwantia/fabric/pkg/container"
)

const loggerTag = "logger"

var loggerServiceType = reflect.TypeOf((*LoggerService)(nil)).Elem()

// LoggerTagProcessor injects the registered LoggerService into fields
// tagged `fabric:"logger"`. A tag of the form `fabric:"logger:<name>"`
// injects a child logger with that name.
type LoggerTagProcessor struct{}

func NewLoggerTagProcessor() *LoggerTagProcessor {
	return &LoggerTagProcessor{}
}

// GetPriority ranks the processor above the default inject processor.
func (p *LoggerTagProcessor) GetPriority() int {
	return 50
}

func (p *LoggerTagProcessor) CanProcess(value string) bool {
	name, _, _ := strings.Cut(value, ":")
	return strings.EqualFold(strings.TrimSpace(name), loggerTag)
}

func (p *LoggerTagProcessor) Process(ctx context.Context, sc *container.ServiceContainer, field reflect.StructField, value string) (any, error) {
	if !loggerServiceType.AssignableTo(field.Type) {
		return nil, fmt.Errorf("field '%s' of type '%s' cannot hold a logger", field.Name, field.Type)
	}

	ok, resolved := sc.ResolveByType(ctx, loggerServiceType)
	if !ok {
		return nil, fmt.Errorf("no logger registered for field '%s'", field.Name)
	}

	logger, ok := resolved.(LoggerService)
	if !ok {
		return nil, fmt.Errorf("registered logger has unexpected type '%T'", resolved)
	}

	if _, name, found := strings.Cut(value, ":"); found {
		if name = strings.TrimSpace(name); name != "" {
			return logger.Named(name), nil
		}
	}
	return logger, nil
}
