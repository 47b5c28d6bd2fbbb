package utils

import (
	"errors"
	"net/http"
	"testing"
)

func TestAppErrorMessage(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"full", E(CodeInternal, "Svc.Op", "failed", base), "Svc.Op: failed: boom"},
		{"no wrapped", E(CodeInternal, "Svc.Op", "failed", nil), "Svc.Op: failed"},
		{"message only", E(CodeInternal, "", "failed", nil), "failed"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("%s: got %q want %q", tt.name, got, tt.want)
		}
	}
}

func TestIsCodeThroughWrapping(t *testing.T) {
	inner := E(CodeUnavailable, "Index.Ping", "unreachable", errors.New("refused"))
	if !IsCode(inner, CodeUnavailable) {
		t.Error("IsCode failed on direct AppError")
	}
	if IsCode(inner, CodeNotFound) {
		t.Error("IsCode matched wrong code")
	}
	if IsCode(errors.New("plain"), CodeInternal) {
		t.Error("IsCode matched non-AppError")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{E(CodeInvalidArgument, "", "", nil), http.StatusBadRequest},
		{E(CodeNotFound, "", "", nil), http.StatusNotFound},
		{E(CodeUnavailable, "", "", nil), http.StatusServiceUnavailable},
		{E(CodeTimeout, "", "", nil), http.StatusGatewayTimeout},
		{ErrNotFound, http.StatusNotFound},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v): got %d want %d", tt.err, got, tt.want)
		}
	}
}
