package trace

// Propagator serializes a TraceContext into a Carrier and back.
//
// Extract returns the zero TraceContext and a nil error when the carrier holds
// none of the propagator's keys. A present but unparsable value yields an
// error matching ErrMalformedContext.
type Propagator interface {
	Inject(tc TraceContext, carrier Carrier)
	Extract(carrier Carrier) (TraceContext, error)
	Fields() []string
}

type compositePropagator struct {
	propagators []Propagator
}

// NewCompositePropagator combines propagators. Inject runs all of them;
// Extract returns the first valid context, else the first error.
func NewCompositePropagator(propagators ...Propagator) Propagator {
	return &compositePropagator{propagators: propagators}
}

func (c *compositePropagator) Inject(tc TraceContext, carrier Carrier) {
	for _, p := range c.propagators {
		p.Inject(tc, carrier)
	}
}

func (c *compositePropagator) Extract(carrier Carrier) (TraceContext, error) {
	var firstErr error
	for _, p := range c.propagators {
		tc, err := p.Extract(carrier)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if tc.IsValid() {
			return tc, nil
		}
	}
	return TraceContext{}, firstErr
}

func (c *compositePropagator) Fields() []string {
	var fields []string
	seen := make(map[string]struct{})
	for _, p := range c.propagators {
		for _, f := range p.Fields() {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			fields = append(fields, f)
		}
	}
	return fields
}
