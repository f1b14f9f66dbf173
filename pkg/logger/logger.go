package logger

import "go.uber.org/zap"

// New returns a JSON production logger, or a console development logger when
// development is true.
func New(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Must is New for use in main.
func Must(development bool) *zap.Logger {
	l, err := New(development)
	if err != nil {
		panic(err)
	}
	return l
}
