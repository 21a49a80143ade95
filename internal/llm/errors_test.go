package llm

import (
	"errors"
	"net/http"
	"testing"
)

func TestClassifyError_ByStatusCode(t *testing.T) {
	cases := []struct {
		name       string
		statusCode int
		wantErr    error
		retryable  bool
	}{
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited, true},
		{"service unavailable", http.StatusServiceUnavailable, ErrUnavailable, true},
		{"bad gateway", http.StatusBadGateway, ErrUnavailable, true},
		{"unauthorized", http.StatusUnauthorized, ErrInvalidCredentials, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			be := ClassifyError(errors.New("boom"), "native", "llama3.1", tc.statusCode)
			if !errors.Is(be.Err, tc.wantErr) {
				t.Fatalf("got err %v, want %v", be.Err, tc.wantErr)
			}
			if be.Retryable != tc.retryable {
				t.Fatalf("got retryable %v, want %v", be.Retryable, tc.retryable)
			}
		})
	}
}

func TestClassifyError_ByMessage(t *testing.T) {
	be := ClassifyError(errors.New("request timeout: deadline exceeded"), "openai_compatible", "gpt-oss", 0)
	if !errors.Is(be.Err, ErrTimeout) {
		t.Fatalf("expected timeout classification, got %v", be.Err)
	}
	if !be.Retryable {
		t.Fatal("expected timeout to be retryable")
	}
}

func TestClassifyError_Nil(t *testing.T) {
	if ClassifyError(nil, "native", "m", 0) != nil {
		t.Fatal("expected nil for nil input error")
	}
}

func TestAsHoneError(t *testing.T) {
	be := ClassifyError(errors.New("429 too many requests"), "native", "m", http.StatusTooManyRequests)
	he := be.AsHoneError()
	if he.Kind != "backend" {
		t.Fatalf("expected backend kind, got %v", he.Kind)
	}
}

func TestIsRetryable(t *testing.T) {
	be := ClassifyError(errors.New("boom"), "native", "m", http.StatusServiceUnavailable)
	if !IsRetryable(be) {
		t.Fatal("expected retryable")
	}
	if IsRetryable(errors.New("plain error")) {
		t.Fatal("expected non-BackendError to not be retryable")
	}
}
