package dto

import "net/http"

// Error code constants
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeValidation is used for malformed or missing request fields
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for generally malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeUnauthorized is used for failed signature verification
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeConflict is used for state conflicts (already used, already delivered)
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeRateLimited is used when a client exceeds the request budget
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
	// ErrCodeUpstream is used when the external wallet system call failed
	ErrCodeUpstream = "ERR_UPSTREAM"
)

// domainCodeToHTTP maps domain error codes to error codes and HTTP statuses
var domainCodeToHTTP = map[string]struct {
	code   string
	status int
}{
	"NOT_FOUND":            {ErrCodeNotFound, http.StatusNotFound},
	"ALREADY_EXISTS":       {ErrCodeConflict, http.StatusConflict},
	"INVALID_INPUT":        {ErrCodeValidation, http.StatusBadRequest},
	"INVALID_STATE":        {ErrCodeConflict, http.StatusConflict},
	"INVALID_SIGNATURE":    {ErrCodeUnauthorized, http.StatusUnauthorized},
	"CONCURRENCY_CONFLICT": {ErrCodeConflict, http.StatusConflict},
	"UPSTREAM_UNAVAILABLE": {ErrCodeUpstream, http.StatusBadGateway},
	"INVALID_BENEFICIARY":  {ErrCodeValidation, http.StatusBadRequest},
	"INVALID_AMOUNT":       {ErrCodeValidation, http.StatusBadRequest},
	"INVALID_EXPIRY":       {ErrCodeValidation, http.StatusBadRequest},
	"INVALID_STATUS":       {ErrCodeValidation, http.StatusBadRequest},
}

// MapDomainCode translates a domain error code to an API error code and HTTP status
func MapDomainCode(domainCode string) (string, int) {
	if m, ok := domainCodeToHTTP[domainCode]; ok {
		return m.code, m.status
	}
	return ErrCodeInternal, http.StatusInternalServerError
}
