package supervise

import "context"

// RunFunc adapts any component exposing Run(ctx context.Context) error —
// Dispatcher, registry.Supervisor, metrics.Collectors, eventforward.Forwarder,
// retention.Purger all do — into suture.Service's Serve(ctx) error, the way
// tomtom215-cartographus's internal/supervisor/services package translates
// "various lifecycle patterns... into suture's context-aware Serve pattern".
type RunFunc struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Serve implements suture.Service.
func (r RunFunc) Serve(ctx context.Context) error {
	return r.Fn(ctx)
}

// String implements fmt.Stringer, used by suture/sutureslog for log lines.
func (r RunFunc) String() string {
	if r.Name == "" {
		return "run-func"
	}
	return r.Name
}
