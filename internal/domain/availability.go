package domain

// EffectiveAvailability resolves override ?? backend ?? true.
func EffectiveAvailability(override, backend *bool) bool {
	if override != nil {
		return *override
	}
	if backend != nil {
		return *backend
	}
	return true
}

type LineState int

const (
	Orderable LineState = iota
	OutOfStock
)

func StateOf(available bool) LineState {
	if available {
		return Orderable
	}
	return OutOfStock
}

func (s LineState) String() string {
	switch s {
	case Orderable:
		return "orderable"
	case OutOfStock:
		return "out_of_stock"
	default:
		return "unknown"
	}
}

func Bool(v bool) *bool {
	return &v
}
