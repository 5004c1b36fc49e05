package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure by how far it is allowed to travel.
type Kind string

const (
	KindTransient Kind = "TRANSIENT" // retried with backoff
	KindPermanent Kind = "PERMANENT" // not retried, unit skipped
	KindFatal     Kind = "FATAL"     // aborts the run
)

func (k Kind) String() string {
	return string(k)
}

// Error codes
const (
	CodeFetch      = "FETCH_ERROR"
	CodeExtract    = "EXTRACT_ERROR"
	CodeValidation = "VALIDATION_ERROR"
	CodeConfig     = "CONFIG_ERROR"
	CodeCache      = "CACHE_ERROR"
	CodeService    = "SERVICE_ERROR"
	CodeTimeout    = "TIMEOUT_ERROR"
)

type AggregatorError struct {
	Message    string
	Code       string
	Kind       Kind
	StatusCode int
	Context    map[string]any
	Cause      error
}

func (e *AggregatorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AggregatorError) Unwrap() error {
	return e.Cause
}

func New(message, code string, kind Kind, context map[string]any) *AggregatorError {
	return &AggregatorError{
		Message: message,
		Code:    code,
		Kind:    kind,
		Context: context,
	}
}

func (e *AggregatorError) WithCause(cause error) *AggregatorError {
	e.Cause = cause
	return e
}

// KindForStatus maps an HTTP status code onto the retry taxonomy.
func KindForStatus(status int) Kind {
	switch {
	case status == 408 || status == 425 || status == 429:
		return KindTransient
	case status >= 500:
		return KindTransient
	case status >= 400:
		return KindPermanent
	default:
		return KindTransient
	}
}

type FetchError struct {
	*AggregatorError
	Locator string
}

func NewFetchError(message, locator string, statusCode int, kind Kind, cause error) *FetchError {
	return &FetchError{
		AggregatorError: &AggregatorError{
			Message:    message,
			Code:       CodeFetch,
			Kind:       kind,
			StatusCode: statusCode,
			Context: map[string]any{
				"locator": locator,
			},
			Cause: cause,
		},
		Locator: locator,
	}
}

type ExtractError struct {
	*AggregatorError
	Locator string
}

func NewExtractError(message, locator string, cause error) *ExtractError {
	return &ExtractError{
		AggregatorError: &AggregatorError{
			Message: message,
			Code:    CodeExtract,
			Kind:    KindPermanent,
			Context: map[string]any{
				"locator": locator,
			},
			Cause: cause,
		},
		Locator: locator,
	}
}

type ValidationError struct {
	*AggregatorError
	Field string
	Value interface{}
}

func NewValidationError(message, field string, value interface{}) *ValidationError {
	return &ValidationError{
		AggregatorError: &AggregatorError{
			Message:    message,
			Code:       CodeValidation,
			Kind:       KindPermanent,
			StatusCode: 400,
			Context: map[string]any{
				"field": field,
				"value": value,
			},
		},
		Field: field,
		Value: value,
	}
}

// ConfigError reports unusable configuration. Startup configuration problems are
// Fatal; a single malformed source descriptor is Permanent for that source only.
type ConfigError struct {
	*AggregatorError
	Setting string
}

func NewConfigError(message, setting string, kind Kind) *ConfigError {
	return &ConfigError{
		AggregatorError: &AggregatorError{
			Message: message,
			Code:    CodeConfig,
			Kind:    kind,
			Context: map[string]any{
				"setting": setting,
			},
		},
		Setting: setting,
	}
}

type CacheError struct {
	*AggregatorError
	Operation string
	Key       string
}

func NewCacheError(message, operation, key string, cause error) *CacheError {
	return &CacheError{
		AggregatorError: &AggregatorError{
			Message:    message,
			Code:       CodeCache,
			Kind:       KindTransient,
			StatusCode: 500,
			Context: map[string]any{
				"operation": operation,
				"key":       key,
			},
			Cause: cause,
		},
		Operation: operation,
		Key:       key,
	}
}

type ServiceError struct {
	*AggregatorError
	Service   string
	Operation string
}

func NewServiceError(message, service, operation string, statusCode int, kind Kind, cause error) *ServiceError {
	return &ServiceError{
		AggregatorError: &AggregatorError{
			Message:    message,
			Code:       CodeService,
			Kind:       kind,
			StatusCode: statusCode,
			Context: map[string]any{
				"service":   service,
				"operation": operation,
			},
			Cause: cause,
		},
		Service:   service,
		Operation: operation,
	}
}

// Permanent marks err as non-retryable without losing its chain.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &AggregatorError{Message: "permanent failure", Code: CodeService, Kind: KindPermanent, Cause: err}
}

// Fatal marks err as run-aborting without losing its chain.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &AggregatorError{Message: "fatal failure", Code: CodeService, Kind: KindFatal, Cause: err}
}

// ErrorKind lets embedding error types report their kind through errors.As.
func (e *AggregatorError) ErrorKind() Kind {
	return e.Kind
}

type kinded interface {
	ErrorKind() Kind
}

// KindOf reports the outermost classified kind in err's chain. Unclassified errors
// are treated as transient.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var k kinded
	if stderrors.As(err, &k) && k.ErrorKind() != "" {
		return k.ErrorKind()
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	if stderrors.Is(err, context.Canceled) {
		return KindPermanent
	}

	return KindTransient
}

func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}

func IsFatal(err error) bool {
	return err != nil && KindOf(err) == KindFatal
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}
