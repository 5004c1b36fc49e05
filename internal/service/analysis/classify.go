package analysis

import (
	"context"
	stderrors "errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/kapu/roster-aggregator-go/pkg/errors"
	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

var (
	geminiCodeRegex = regexp.MustCompile(`"code":\s*(\d{3})`)
	statusRegex     = regexp.MustCompile(`\b([45]\d{2})\b`)
)

// statusOf extracts an HTTP status from a provider error, 0 when unknown.
func statusOf(err error) int {
	var geminiErr genai.APIError
	if stderrors.As(err, &geminiErr) && geminiErr.Code > 0 {
		return geminiErr.Code
	}
	var openaiErr *openai.Error
	if stderrors.As(err, &openaiErr) && openaiErr.StatusCode > 0 {
		return openaiErr.StatusCode
	}

	msg := err.Error()
	if strings.Contains(msg, "Rate limit") || strings.Contains(msg, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED") {
		return 429
	}
	if m := geminiCodeRegex.FindStringSubmatch(msg); len(m) > 1 {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	if m := statusRegex.FindStringSubmatch(msg); len(m) > 1 {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}

// classifyProviderError wraps a provider failure with its retry kind. Network
// failures and unknown errors are transient.
func classifyProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}

	status := statusOf(err)
	kind := errors.KindTransient
	if status > 0 {
		kind = errors.KindForStatus(status)
	}
	return errors.NewServiceError(provider+" generation failed", provider, "generate", status, kind, err)
}

func isRateLimited(err error) bool {
	var se *errors.ServiceError
	return stderrors.As(err, &se) && se.StatusCode == 429
}
