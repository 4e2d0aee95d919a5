package logging

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestOperationErrorMessage(t *testing.T) {
	cause := errors.New("connection refused")

	err := NewOperationError("ocr_client.recognize", "", cause)
	if got := err.Error(); got != "ocr_client.recognize: connection refused" {
		t.Fatalf("unexpected message: %s", got)
	}

	err = NewOperationError("usecase.preprocess", "req-7", cause)
	if got := err.Error(); !strings.Contains(got, "request req-7") {
		t.Fatalf("expected request id in message, got: %s", got)
	}
}

func TestOperationErrorNilCause(t *testing.T) {
	if err := NewOperationError("usecase.preprocess", "req-1", nil); err != nil {
		t.Fatalf("expected nil for nil cause, got %v", err)
	}
}

func TestOperationErrorUnwrapsToCause(t *testing.T) {
	sentinel := errors.New("not found")
	err := NewOperationError("repository.find", "req-3", fmt.Errorf("lookup: %w", sentinel))

	if !errors.Is(err, sentinel) {
		t.Fatal("expected errors.Is to reach the sentinel through the wrapper")
	}
}

func TestErrorFieldsLiftOperationContext(t *testing.T) {
	err := NewOperationError("cache.set.result", "req-9", errors.New("timeout"))

	fields := ErrorFields(err)
	byKey := map[string]zap.Field{}
	for _, f := range fields {
		byKey[f.Key] = f
	}

	if f, ok := byKey["failed_operation"]; !ok || f.String != "cache.set.result" {
		t.Fatalf("expected failed_operation field, got %+v", byKey)
	}
	if f, ok := byKey["request_id"]; !ok || f.String != "req-9" {
		t.Fatalf("expected request_id field, got %+v", byKey)
	}
}

func TestErrorFieldsPlainError(t *testing.T) {
	fields := ErrorFields(errors.New("boom"))
	if len(fields) != 1 {
		t.Fatalf("expected only the error field for a plain error, got %d fields", len(fields))
	}
	if fields[0].Key != "error" {
		t.Fatalf("unexpected field key %s", fields[0].Key)
	}
}
