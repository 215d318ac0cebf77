package model

// Decorator adjusts normalised descriptors in place, for example to resolve
// widget hints.
type Decorator interface {
	Decorate(fields []Field) error
}

// DecoratorFunc adapts a function into a Decorator.
type DecoratorFunc func(fields []Field) error

// Decorate calls the underlying function.
func (fn DecoratorFunc) Decorate(fields []Field) error {
	return fn(fields)
}
