package domain

import (
	"github.com/kapu/roster-aggregator-go/pkg/errors"
)

// FetchOutcome is the result of exactly one network fetch: either raw content or
// a classified failure.
type FetchOutcome struct {
	Locator    string
	Content    []byte
	StatusCode int
	Kind       errors.Kind
	Message    string
	Err        error
}

func FetchSuccess(locator string, status int, content []byte) FetchOutcome {
	return FetchOutcome{Locator: locator, StatusCode: status, Content: content}
}

func FetchFailure(locator string, status int, kind errors.Kind, message string, cause error) FetchOutcome {
	return FetchOutcome{
		Locator:    locator,
		StatusCode: status,
		Kind:       kind,
		Message:    message,
		Err:        errors.NewFetchError(message, locator, status, kind, cause),
	}
}

func (o FetchOutcome) OK() bool {
	return o.Err == nil
}

// Result unpacks the outcome into the usual (value, error) pair.
func (o FetchOutcome) Result() ([]byte, error) {
	if o.Err != nil {
		return nil, o.Err
	}
	return o.Content, nil
}
