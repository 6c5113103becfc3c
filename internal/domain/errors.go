package domain

// ValidationError is a rule violation scoped to one form field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is an insertion-ordered multimap of field errors. A field
// may carry more than one message.
type ValidationErrors []ValidationError

// Add appends an error.
func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}

// Has reports whether field has at least one error.
func (e ValidationErrors) Has(field string) bool {
	for _, ve := range e {
		if ve.Field == field {
			return true
		}
	}
	return false
}

// For returns every message recorded for field, in order.
func (e ValidationErrors) For(field string) []string {
	var msgs []string
	for _, ve := range e {
		if ve.Field == field {
			msgs = append(msgs, ve.Message)
		}
	}
	return msgs
}

// Without returns the errors not attached to field.
func (e ValidationErrors) Without(field string) ValidationErrors {
	out := make(ValidationErrors, 0, len(e))
	for _, ve := range e {
		if ve.Field != field {
			out = append(out, ve)
		}
	}
	return out
}

// Fields returns the distinct fields in first-seen order.
func (e ValidationErrors) Fields() []string {
	seen := make(map[string]struct{}, len(e))
	var fields []string
	for _, ve := range e {
		if _, ok := seen[ve.Field]; ok {
			continue
		}
		seen[ve.Field] = struct{}{}
		fields = append(fields, ve.Field)
	}
	return fields
}
