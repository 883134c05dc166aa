package process

// Limits bounds per-process resource usage: how many instructions run per
// scheduling cycle (spec §4.4) and how many pages the byte-addressable
// memory arena starts with.
type Limits struct {
	PreemptionThreshold int
	StackPages          int
	PageSize            int
}

// DefaultLimits matches spec §4.4's reference preemption threshold (N=2)
// and gives each process a modest starting arena.
func DefaultLimits() Limits {
	return Limits{
		PreemptionThreshold: 2,
		StackPages:          4,
		PageSize:            4096,
	}
}

// Option configures a Limits value, the idiomatic functional-options shape
// used throughout this module's configuration surface (SPEC_FULL §2.3).
type Option func(*Limits)

func WithPreemptionThreshold(n int) Option {
	return func(l *Limits) { l.PreemptionThreshold = n }
}

func WithStackPages(n int) Option {
	return func(l *Limits) { l.StackPages = n }
}

func WithPageSize(n int) Option {
	return func(l *Limits) { l.PageSize = n }
}

func NewLimits(opts ...Option) Limits {
	l := DefaultLimits()
	for _, opt := range opts {
		opt(&l)
	}
	return l
}
