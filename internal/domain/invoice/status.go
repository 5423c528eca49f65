package invoice

// StatusKind identifies which ERP status dimension a code belongs to.
type StatusKind string

const (
	StatusKindOrder    StatusKind = "order"
	StatusKindShipping StatusKind = "shipping"
	StatusKindStock    StatusKind = "stock"
)

// StatusEntry is a resolved status label plus its display color.
type StatusEntry struct {
	Label string
	Color string
}

// StatusNamer resolves a raw ERP status code into a human-readable label and a
// display color. Implementations are immutable; the synchronizer is handed a
// fresh instance per sync cycle instead of mutating a shared lookup map.
type StatusNamer interface {
	StatusName(kind StatusKind, code int) (label, color string)
}

// StaticStatusNamer is an immutable StatusNamer backed by fixed maps.
type StaticStatusNamer struct {
	entries map[StatusKind]map[int]StatusEntry
}

// NewStaticStatusNamer copies the given maps so later mutation of the input
// cannot leak into the namer.
func NewStaticStatusNamer(entries map[StatusKind]map[int]StatusEntry) *StaticStatusNamer {
	copied := make(map[StatusKind]map[int]StatusEntry, len(entries))
	for kind, m := range entries {
		inner := make(map[int]StatusEntry, len(m))
		for code, e := range m {
			inner[code] = e
		}
		copied[kind] = inner
	}
	return &StaticStatusNamer{entries: copied}
}

// StatusName implements StatusNamer. Unknown codes resolve to an empty label
// with a neutral color so callers never render a nil status.
func (n *StaticStatusNamer) StatusName(kind StatusKind, code int) (string, string) {
	if m, ok := n.entries[kind]; ok {
		if e, ok := m[code]; ok {
			return e.Label, e.Color
		}
	}
	return "", "#999999"
}

// DefaultStatusNamer returns the built-in status mapping used when no
// configuration overrides are present.
func DefaultStatusNamer() *StaticStatusNamer {
	return NewStaticStatusNamer(map[StatusKind]map[int]StatusEntry{
		StatusKindOrder: {
			1: {Label: "Draft", Color: "#999999"},
			2: {Label: "Confirmed", Color: "#2b7bb9"},
			3: {Label: "Invoiced", Color: "#7c4dff"},
			4: {Label: "Shipped", Color: "#00a65a"},
			5: {Label: "On Hold", Color: "#f39c12"},
		},
		StatusKindShipping: {
			1: {Label: "Not Shipped", Color: "#999999"},
			2: {Label: "Partially Shipped", Color: "#f39c12"},
			3: {Label: "Shipped", Color: "#00a65a"},
		},
		StatusKindStock: {
			1: {Label: "Unallocated", Color: "#999999"},
			2: {Label: "Partially Allocated", Color: "#f39c12"},
			3: {Label: "Allocated", Color: "#00a65a"},
		},
	})
}
