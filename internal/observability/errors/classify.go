// Package errors derives normalized error class names for metric tagging.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	apperrors "github.com/matchday/sportsync/internal/errors"
)

// Classify returns a normalized class name for an error, suitable for tagging
// metrics and logs. Application errors classify by their code, context errors
// by what ended them, and everything else by the innermost concrete type in
// the chain.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var appErr *apperrors.AppError
	switch {
	case goerrors.As(err, &appErr):
		return "app_" + string(appErr.Code)
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}

	// Wrapping layers carry no signal; peel down to the innermost error.
	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	return typeName(err)
}

func typeName(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
