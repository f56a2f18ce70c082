package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsAuthError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain 401", errors.New("401 Unauthorized"), true},
		{"google api key message", errors.New("API key not valid. Please pass a valid API key."), true},
		{"cohere token message", errors.New("invalid api token"), true},
		{"unauthenticated grpc", errors.New("rpc error: code = Unauthenticated desc = bad credentials"), true},
		{"permission denied", errors.New("permission denied for resource"), true},
		{"wrapped", fmt.Errorf("calling provider: %w", errors.New("403 unauthorized")), true},
		{"transient", errors.New("503 service unavailable"), false},
		{"timeout", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAuthError(tt.err); got != tt.want {
				t.Errorf("IsAuthError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyProviderError(t *testing.T) {
	if got := ClassifyProviderError(errors.New("401 Unauthorized")); !errors.Is(got, ErrAuthentication) {
		t.Errorf("auth pattern classified as %v", got)
	}
	if got := ClassifyProviderError(errors.New("model overloaded")); !errors.Is(got, ErrProvider) {
		t.Errorf("transient failure classified as %v", got)
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusProcessing, StatusReady, StatusError} {
		if !s.Valid() {
			t.Errorf("%s reported invalid", s)
		}
	}
	if Status("archived").Valid() {
		t.Error("unknown status reported valid")
	}
}

func TestPermissionsClasses(t *testing.T) {
	all := Permissions{AllowCode: true, AllowDocs: true, AllowIssues: true}
	if got := all.Classes(); len(got) != 3 {
		t.Errorf("all permissions: got %v", got)
	}

	none := Permissions{}
	if got := none.Classes(); len(got) != 0 {
		t.Errorf("no permissions: got %v", got)
	}

	docsOnly := Permissions{AllowDocs: true}
	got := docsOnly.Classes()
	if len(got) != 1 || got[0] != ClassDocs {
		t.Errorf("docs only: got %v", got)
	}
}
