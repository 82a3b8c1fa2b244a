package message

// ValidationResult is the outcome of running a message through one or more
// validators. Results merge across a validator chain: validity ANDs,
// errors and warnings append, metadata unions with later writers winning.
type ValidationResult struct {
	Valid    bool           `json:"valid"`
	Errors   []string       `json:"errors,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// OK returns a passing result.
func OK() *ValidationResult {
	return &ValidationResult{Valid: true}
}

// Invalid returns a failing result carrying the given error strings.
func Invalid(errs ...string) *ValidationResult {
	return &ValidationResult{Valid: false, Errors: errs}
}

// AddError marks the result invalid and records the error string.
func (r *ValidationResult) AddError(msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, msg)
}

// AddWarning records a non-fatal finding.
func (r *ValidationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// SetMeta records a metadata key, allocating the map lazily.
func (r *ValidationResult) SetMeta(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
}

// Merge folds other into r. Validity is the conjunction of both results.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Valid = r.Valid && other.Valid
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	for k, v := range other.Metadata {
		r.SetMeta(k, v)
	}
}
