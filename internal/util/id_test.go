package util

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewID(t *testing.T) {
	id := NewID("msg")
	if !strings.HasPrefix(id, "msg_") {
		t.Fatalf("expected msg_ prefix, got %q", id)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(id, "msg_")); err != nil {
		t.Fatalf("expected uuid suffix: %v", err)
	}
	if NewID("msg") == id {
		t.Fatal("ids must be unique")
	}
	if _, err := uuid.Parse(NewID("")); err != nil {
		t.Fatalf("unprefixed id must be a bare uuid: %v", err)
	}
}
