package lifecycle

import "context"

// Hook describes a named shutdown hook.
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Closer adapts a plain Close method into a hook function.
func Closer(close func() error) func(context.Context) error {
	return func(context.Context) error {
		if close == nil {
			return nil
		}
		return close()
	}
}
