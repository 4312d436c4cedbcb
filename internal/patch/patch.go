// Package patch holds the shared merge rule for partial updates: a nil field
// leaves the existing value alone, a non-nil field replaces it.
package patch

// Field overwrites *dst with *value when value is non-nil.
func Field[T any](dst *T, value *T) {
	if value == nil {
		return
	}
	*dst = *value
}

