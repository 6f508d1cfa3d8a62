package model

// Revision is an identified desired-state configuration input, pre-build.
// It is immutable once fetched; remediation produces a new derived Revision
// rather than mutating the original.
type Revision struct {
	// ID is a content hash or monotonic tag identifying the revision.
	ID string `json:"id"`
	// Components lists the component names affected by this revision.
	Components []string `json:"components"`
	// PayloadRef is an opaque reference to the raw configuration payload.
	PayloadRef string `json:"payload_ref"`
	// Patches lists corrective rewrites applied by remediation, in order.
	// Each entry is a directive the builder understands.
	Patches []string `json:"patches,omitempty"`
}

// WithPatch returns a derived revision with the given patch directive
// appended. The derived revision gets a suffixed ID so it is distinguishable
// from its parent in generation records and reports.
func (r Revision) WithPatch(name, directive string) Revision {
	patched := Revision{
		ID:         r.ID + "+" + name,
		Components: append([]string(nil), r.Components...),
		PayloadRef: r.PayloadRef,
		Patches:    append(append([]string(nil), r.Patches...), directive),
	}
	return patched
}

// Equal reports whether two revisions identify the same desired state.
func (r Revision) Equal(other Revision) bool {
	return r.ID == other.ID
}
