package contact

// FieldChange records the value of one field before and after a merge.
// A nil value means the field did not exist.
type FieldChange struct {
	Field string  `json:"field" yaml:"field"`
	Old   *string `json:"old,omitempty" yaml:"old,omitempty"`
	New   *string `json:"new,omitempty" yaml:"new,omitempty"`
}

// Effective reports whether the change alters the value. Empty and absent
// values are equivalent.
func (c FieldChange) Effective() bool {
	return deref(c.Old) != deref(c.New)
}

// OldValue returns the previous value, or "" when absent.
func (c FieldChange) OldValue() string { return deref(c.Old) }

// NewValue returns the new value, or "" when absent.
func (c FieldChange) NewValue() string { return deref(c.New) }

// Effective filters changes down to the effective ones, keeping order.
func Effective(changes []FieldChange) []FieldChange {
	out := make([]FieldChange, 0, len(changes))
	for _, c := range changes {
		if c.Effective() {
			out = append(out, c)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
