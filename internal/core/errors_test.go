package core

import (
	"errors"
	"net/http"
	"testing"
)

func TestGatewayError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *GatewayError
		expected string
	}{
		{
			name:     "error with provider",
			err:      &GatewayError{Type: ErrorTypeProvider, Message: "upstream error", Provider: "groq"},
			expected: "[groq] provider_error: upstream error",
		},
		{
			name:     "error without provider",
			err:      &GatewayError{Type: ErrorTypeInvalidRequest, Message: "bad request"},
			expected: "invalid_request_error: bad request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGatewayError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		errType  ErrorType
		expected int
	}{
		{ErrorTypeRateLimit, http.StatusTooManyRequests},
		{ErrorTypeInvalidRequest, http.StatusBadRequest},
		{ErrorTypeAuthentication, http.StatusUnauthorized},
		{ErrorTypePermission, http.StatusForbidden},
		{ErrorTypeNotFound, http.StatusNotFound},
		{ErrorTypeUnavailable, http.StatusServiceUnavailable},
		{ErrorTypeProvider, http.StatusBadGateway},
		{ErrorType("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			err := &GatewayError{Type: tt.errType}
			if got := err.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestGatewayError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewProviderError("mistral", http.StatusBadGateway, "failed to send request", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the original error")
	}
}

func TestParseProviderError(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		body        string
		wantType    ErrorType
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "openai style 401",
			statusCode:  http.StatusUnauthorized,
			body:        `{"error":{"message":"Invalid API key","type":"invalid_request_error"}}`,
			wantType:    ErrorTypeAuthentication,
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Invalid API key",
		},
		{
			name:        "rate limited",
			statusCode:  http.StatusTooManyRequests,
			body:        `{"error":{"message":"quota exceeded"}}`,
			wantType:    ErrorTypeRateLimit,
			wantStatus:  http.StatusTooManyRequests,
			wantMessage: "quota exceeded",
		},
		{
			name:        "cohere top-level message",
			statusCode:  http.StatusNotFound,
			body:        `{"message":"model not found"}`,
			wantType:    ErrorTypeInvalidRequest,
			wantStatus:  http.StatusNotFound,
			wantMessage: "model not found",
		},
		{
			name:        "huggingface string error",
			statusCode:  http.StatusServiceUnavailable,
			body:        `{"error":"Model is currently loading"}`,
			wantType:    ErrorTypeProvider,
			wantStatus:  http.StatusBadGateway,
			wantMessage: "Model is currently loading",
		},
		{
			name:        "plain text body",
			statusCode:  http.StatusInternalServerError,
			body:        "internal error",
			wantType:    ErrorTypeProvider,
			wantStatus:  http.StatusBadGateway,
			wantMessage: "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseProviderError("test", tt.statusCode, []byte(tt.body), nil)
			if err.Type != tt.wantType {
				t.Errorf("Type = %s, want %s", err.Type, tt.wantType)
			}
			if err.HTTPStatusCode() != tt.wantStatus {
				t.Errorf("HTTPStatusCode() = %d, want %d", err.HTTPStatusCode(), tt.wantStatus)
			}
			if err.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMessage)
			}
			if err.UpstreamStatus != tt.statusCode {
				t.Errorf("UpstreamStatus = %d, want %d", err.UpstreamStatus, tt.statusCode)
			}
			if err.Provider != "test" {
				t.Errorf("Provider = %q, want test", err.Provider)
			}
		})
	}
}
