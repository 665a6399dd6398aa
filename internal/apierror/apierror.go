// Package apierror provides the error envelopes returned by the HTTP API.
// Nothing internal (driver errors, stack traces, ciphertext) reaches a client.
package apierror

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// ValidationError wraps per-field validation failures.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation failed", Fields: fields}
}

// DenialError is returned when an approval was recorded as a denial.
// Transaction carries the recorded row so the station can show it.
type DenialError struct {
	Detail      string      `json:"detail"`
	Reason      string      `json:"reason"`
	Transaction interface{} `json:"transaction,omitempty"`
}

func NewDenial(reason, detail string, transaction interface{}) *DenialError {
	return &DenialError{Detail: detail, Reason: reason, Transaction: transaction}
}
