// Package common provides small generic helpers shared across the planner's
// packages (pointer boxing, secret masking for logs, fail-fast init helpers).
package common

import "fmt"

// MaskSecret masks sensitive strings for safe logging.
// Shows first 4 and last 4 characters for strings longer than 8 chars.
// Returns "***" for short strings and "<not set>" for empty strings.
func MaskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// Must panics if err is not nil, otherwise returns value. Useful for
// initialization code that should fail fast.
func Must[T any](value T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("Must: operation failed: %v", err))
	}
	return value
}

// MustNoError panics if err is not nil.
func MustNoError(err error) {
	if err != nil {
		panic(fmt.Sprintf("MustNoError: operation failed: %v", err))
	}
}

// Ptr returns a pointer to the given value. Useful for optional struct
// fields such as GraphCacheConfig.MaxCacheSize.
func Ptr[T any](v T) *T {
	return &v
}

// PtrValue returns the value of a pointer, or the zero value if nil.
func PtrValue[T any](ptr *T) T {
	if ptr == nil {
		var zero T
		return zero
	}
	return *ptr
}
