package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// AuthError indicates that authentication has failed or expired for a
// backend. It is returned by backend clients when a 401 response (or a
// failed login) is received.
type AuthError struct {
	Backend string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Backend, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// RawRecord is one notification exactly as a backend returned it. Its
// shape varies by backend revision; the normalize package decides what
// it means.
type RawRecord = json.RawMessage

// Backend is the contract every notification feed implements. The sync
// engine never knows whether it talks to a real service or a test double.
type Backend interface {
	// FetchPage returns one page (1-based) of the subscriber's
	// notifications.
	FetchPage(
		ctx context.Context,
		subscriberID string,
		page int,
		limit int,
	) ([]RawRecord, error)

	// FetchHistory returns the subscriber's historical notifications.
	FetchHistory(
		ctx context.Context,
		subscriberID string,
		limit int,
	) ([]RawRecord, error)

	// MarkRead asks the backend to mark one notification read. A false
	// result with a nil error means the backend declined.
	MarkRead(
		ctx context.Context,
		id string,
		subscriberID string,
	) (bool, error)
}

// wrapperFields are the object keys under which backends nest the
// record list, in lookup order.
var wrapperFields = []string{"notifications", "data", "items"}

// DecodeRecords extracts the record list from a response body that is
// either a bare JSON array or a wrapper object holding the array under
// one of wrapperFields. Any other well-formed JSON yields no records;
// malformed JSON is an error.
func DecodeRecords(body []byte) ([]RawRecord, error) {
	var v json.RawMessage
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decoding records: %w", err)
	}

	var list []RawRecord
	if err := json.Unmarshal(v, &list); err == nil {
		return list, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(v, &wrapper); err != nil {
		return nil, nil
	}

	for _, field := range wrapperFields {
		inner, ok := wrapper[field]
		if !ok {
			continue
		}
		if err := json.Unmarshal(inner, &list); err == nil {
			return list, nil
		}
	}

	return nil, nil
}
