package errors

import (
	"fmt"
	"testing"
)

func TestCtxError_Error(t *testing.T) {
	err := &CtxError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "task not found",
	}

	expected := "NOT_FOUND: task not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("task is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "task is required" {
		t.Errorf("Message = %q, want %q", err.Message, "task is required")
	}
}

func TestNewFileNotFound(t *testing.T) {
	err := NewFileNotFound("docs/a.md")

	if err.Code != ErrFileNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrFileNotFound)
	}
	if err.Details["path"] != "docs/a.md" {
		t.Errorf("Details[path] = %v, want %q", err.Details["path"], "docs/a.md")
	}
}

func TestNewMissingEssentialFile(t *testing.T) {
	err := NewMissingEssentialFile("docs/guide.md")

	if err.Code != ErrMissingEssentialFile {
		t.Errorf("Code = %q, want %q", err.Code, ErrMissingEssentialFile)
	}
	if err.Status != 424 {
		t.Errorf("Status = %d, want 424", err.Status)
	}
	want := "MISSING_ESSENTIAL_FILE: essential file missing: docs/guide.md; context build interrupted"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNewManifestRequired(t *testing.T) {
	if got := NewManifestRequired("").Message; got != "manifest required but none could be loaded" {
		t.Errorf("Message = %q", got)
	}
	if got := NewManifestRequired("m.json").Message; got != "manifest required but could not be loaded from m.json" {
		t.Errorf("Message = %q", got)
	}
}

func TestNewInternal(t *testing.T) {
	err := NewInternal(fmt.Errorf("boom"))
	if err.Code != ErrInternal || err.Status != 500 || err.Message != "boom" {
		t.Errorf("NewInternal = %+v", err)
	}

	err = NewInternal(nil)
	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewInvalidRequest("x"), ErrInvalidRequest, true},
		{"different code", NewInvalidRequest("x"), ErrInternal, false},
		{"plain error", fmt.Errorf("x"), ErrInternal, false},
		{"wrapped", fmt.Errorf("pack: %w", NewMissingEssentialFile("a")), ErrMissingEssentialFile, true},
		{"nil", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMissingPath(t *testing.T) {
	p, ok := MissingPath(fmt.Errorf("wrap: %w", NewMissingEssentialFile("x/y.txt")))
	if !ok || p != "x/y.txt" {
		t.Errorf("MissingPath() = %q, %v; want %q, true", p, ok, "x/y.txt")
	}

	if _, ok := MissingPath(NewInvalidRequest("x")); ok {
		t.Errorf("MissingPath() ok = true for non-missing error")
	}
}
