package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	internal := stdErrors.New("boom")
	err := Wrap(internal, "failed")

	if err.Error() != "failed: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", 400)
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}

	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}

	if with.Internal == nil {
		t.Fatal("expected internal error to be set")
	}
}

func TestFromError(t *testing.T) {
	appErr := ErrOffline
	if out := FromError(appErr); out != appErr {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	raw := stdErrors.New("raw")
	out := FromError(raw)
	if out.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal server code, got %s", out.Code)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}
}

func TestSynthesizedStatusCodes(t *testing.T) {
	if ErrOffline.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("offline status = %d, want 503", ErrOffline.StatusCode)
	}
	if ErrAssetUnavailable.StatusCode != http.StatusNotFound {
		t.Fatalf("asset unavailable status = %d, want 404", ErrAssetUnavailable.StatusCode)
	}
}

func TestIsMatchesSentinelThroughWithInternal(t *testing.T) {
	err := ErrBadPushPayload.WithInternal(stdErrors.New("unexpected end of JSON input"))
	if !stdErrors.Is(err, ErrBadPushPayload) {
		t.Fatal("expected WithInternal copy to match its sentinel")
	}
	if stdErrors.Is(err, ErrOffline) {
		t.Fatal("expected distinct codes not to match")
	}
}
