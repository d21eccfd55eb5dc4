package registry

import (
	"context"
	"fmt"
)

// PayloadTypeError reports a payload whose dynamic type does not match the
// input type the handler was registered with.
type PayloadTypeError struct {
	Want string
	Got  string
}

func (e *PayloadTypeError) Error() string {
	return fmt.Sprintf("payload type mismatch: handler expects %s, got %s", e.Want, e.Got)
}

// TypedFunc is a handler with static input and output types.
type TypedFunc[In, Out any] func(ctx context.Context, in In, ec ExecContext) (Out, error)

// Typed adapts fn to the untyped Handler signature. The payload is checked
// against In on every call; a mismatch fails with *PayloadTypeError without
// invoking fn. A nil payload is accepted as the zero value of In.
func Typed[In, Out any](fn TypedFunc[In, Out]) Handler {
	if fn == nil {
		return nil
	}

	var zeroIn In
	want := fmt.Sprintf("%T", zeroIn)

	return func(ctx context.Context, payload any, ec ExecContext) (any, error) {
		in, ok := payload.(In)
		if !ok {
			if payload != nil {
				return nil, &PayloadTypeError{Want: want, Got: fmt.Sprintf("%T", payload)}
			}
			in = zeroIn
		}
		return fn(ctx, in, ec)
	}
}

// Register binds a typed handler under name.
func Register[In, Out any](r *Registry, name string, fn TypedFunc[In, Out]) error {
	return r.Register(name, Typed(fn))
}
