package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeNotImplemented     ErrorCode = "COMMON_015"
)

// Alert corpus error codes
const (
	ErrCodeAlertNotFound     ErrorCode = "ALERT_001"
	ErrCodeAlertCorpusEmpty  ErrorCode = "ALERT_002"
	ErrCodeAlertFetchFailed  ErrorCode = "ALERT_003"
	ErrCodeAlertParseFailed  ErrorCode = "ALERT_004"
	ErrCodeAlertIndexFailed  ErrorCode = "ALERT_005"
	ErrCodeAlertSearchFailed ErrorCode = "ALERT_006"
)

// Verification pipeline error codes
const (
	ErrCodeVerificationInputInvalid ErrorCode = "VER_001"
	ErrCodeVerificationDegraded     ErrorCode = "VER_002"
	ErrCodeRankingFailed            ErrorCode = "VER_003"
	ErrCodeEnsembleFailed           ErrorCode = "VER_004"
	ErrCodeSimilarityFailed         ErrorCode = "VER_005"
	ErrCodeRegistryLookupFailed     ErrorCode = "VER_006"
)

// OCR / text-extraction error codes
const (
	ErrCodeOCRUnavailable ErrorCode = "OCR_001"
	ErrCodeOCRTimeout     ErrorCode = "OCR_002"
	ErrCodeOCRFailed      ErrorCode = "OCR_003"
	ErrCodeImageInvalid   ErrorCode = "OCR_004"
	ErrCodeImageTooLarge  ErrorCode = "OCR_005"
)

// Upstream data-source error codes (detail pages, text-analysis provider)
const (
	ErrCodeSourceUnavailable ErrorCode = "SRC_001"
	ErrCodeSourceRateLimited ErrorCode = "SRC_002"
	ErrCodeSourceParseError  ErrorCode = "SRC_003"
	ErrCodeSourceNotOfficial ErrorCode = "SRC_004"
	ErrCodeAnalysisProvider  ErrorCode = "SRC_005"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeAlertNotFound:     http.StatusNotFound,
	ErrCodeAlertCorpusEmpty:  http.StatusOK,
	ErrCodeAlertFetchFailed:  http.StatusBadGateway,
	ErrCodeAlertParseFailed:  http.StatusBadGateway,
	ErrCodeAlertIndexFailed:  http.StatusInternalServerError,
	ErrCodeAlertSearchFailed: http.StatusInternalServerError,

	ErrCodeVerificationInputInvalid: http.StatusBadRequest,
	ErrCodeVerificationDegraded:     http.StatusOK,
	ErrCodeRankingFailed:            http.StatusInternalServerError,
	ErrCodeEnsembleFailed:           http.StatusInternalServerError,
	ErrCodeSimilarityFailed:         http.StatusInternalServerError,
	ErrCodeRegistryLookupFailed:     http.StatusInternalServerError,

	ErrCodeOCRUnavailable: http.StatusServiceUnavailable,
	ErrCodeOCRTimeout:     http.StatusGatewayTimeout,
	ErrCodeOCRFailed:      http.StatusInternalServerError,
	ErrCodeImageInvalid:   http.StatusBadRequest,
	ErrCodeImageTooLarge:  http.StatusRequestEntityTooLarge,

	ErrCodeSourceUnavailable: http.StatusServiceUnavailable,
	ErrCodeSourceRateLimited: http.StatusTooManyRequests,
	ErrCodeSourceParseError:  http.StatusBadGateway,
	ErrCodeSourceNotOfficial: http.StatusBadGateway,
	ErrCodeAnalysisProvider:  http.StatusBadGateway,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeAlertNotFound:     "alert not found",
	ErrCodeAlertCorpusEmpty:  "alert corpus is empty",
	ErrCodeAlertFetchFailed:  "failed to fetch alert data",
	ErrCodeAlertParseFailed:  "failed to parse alert source",
	ErrCodeAlertIndexFailed:  "failed to index alert",
	ErrCodeAlertSearchFailed: "alert search failed",

	ErrCodeVerificationInputInvalid: "invalid verification input",
	ErrCodeVerificationDegraded:     "verification completed in degraded mode",
	ErrCodeRankingFailed:            "candidate ranking failed",
	ErrCodeEnsembleFailed:           "ensemble decision failed",
	ErrCodeSimilarityFailed:         "similarity computation failed",
	ErrCodeRegistryLookupFailed:     "counterfeit registry lookup failed",

	ErrCodeOCRUnavailable: "text-extraction provider unavailable",
	ErrCodeOCRTimeout:     "text extraction timed out",
	ErrCodeOCRFailed:      "text extraction failed",
	ErrCodeImageInvalid:   "invalid image",
	ErrCodeImageTooLarge:  "image exceeds size limit",

	ErrCodeSourceUnavailable: "alert source unavailable",
	ErrCodeSourceRateLimited: "alert source rate limited",
	ErrCodeSourceParseError:  "failed to parse source page",
	ErrCodeSourceNotOfficial: "source page failed authenticity check",
	ErrCodeAnalysisProvider:  "text-analysis provider error",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
