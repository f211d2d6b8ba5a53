package core

// Result is the envelope returned to the presentation layer by every bridge operation.
type Result struct {
	Success bool         `json:"success"`
	Data    interface{}  `json:"data,omitempty"`
	Message string       `json:"message,omitempty"`
	Kind    string       `json:"kind,omitempty"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// NewResult builds a Result from an operation's output.
func NewResult(data interface{}, err error) Result {
	if err == nil {
		return Result{Success: true, Data: data}
	}
	res := Result{Message: err.Error(), Kind: KindOf(err).String()}
	if valErr, ok := AsValidationError(err); ok {
		res.Fields = valErr.Fields
	}
	return res
}
