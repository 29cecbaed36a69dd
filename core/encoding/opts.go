package encoding

import "log/slog"

type (
	valueOption[T any] struct{ v T }

	FormatOption        valueOption[Format]
	LogOption           valueOption[*slog.Logger]
	PreProcessorsOption valueOption[[]PreProcessor]
	MiddlewaresOption   valueOption[[]Middleware]

	encodingOpts struct {
		format        Format
		log           *slog.Logger
		preProcessors []PreProcessor
		middlewares   []Middleware
	}

	Option interface{ applyToEncoding(*encodingOpts) }
)

// WithFormat sets the format values are serialized in (default: JSON).
func WithFormat(f Format) FormatOption { return FormatOption{v: f} }

func WithLog(l *slog.Logger) LogOption { return LogOption{v: l} }

// WithPreProcessors appends pre-processors, applied in order.
func WithPreProcessors(p ...PreProcessor) PreProcessorsOption { return PreProcessorsOption{v: p} }

// WithMiddlewares appends middlewares, applied in order.
func WithMiddlewares(m ...Middleware) MiddlewaresOption { return MiddlewaresOption{v: m} }

func (o FormatOption) applyToEncoding(e *encodingOpts) { e.format = o.v }
func (o LogOption) applyToEncoding(e *encodingOpts)    { e.log = o.v }
func (o PreProcessorsOption) applyToEncoding(e *encodingOpts) {
	e.preProcessors = append(e.preProcessors, o.v...)
}
func (o MiddlewaresOption) applyToEncoding(e *encodingOpts) {
	e.middlewares = append(e.middlewares, o.v...)
}
