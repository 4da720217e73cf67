package httpapi

// MarkReadRequest is the body of PATCH /notifications/:id/read.
type MarkReadRequest struct {
	UserID string `json:"userId"`
	ReadAt string `json:"readAt,omitempty"`
}

// MarkReadResponse is the acknowledgement returned by the read endpoint.
type MarkReadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the error body the API returns on non-2xx status.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Text returns the most descriptive message present.
func (e ErrorResponse) Text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}
