package util

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestUIDFromUUID(t *testing.T) {
	u := uuid.MustParse("00000000-0000-0000-0000-0000000000ff")
	if got := UIDFromUUID(u); got != "2.25.255" {
		t.Errorf("UIDFromUUID = %q, want 2.25.255", got)
	}
}

func TestDeterministicUID(t *testing.T) {
	a := DeterministicUID("study/1")
	b := DeterministicUID("study/1")
	c := DeterministicUID("study/2")

	if a != b {
		t.Errorf("DeterministicUID not stable: %q vs %q", a, b)
	}
	if a == c {
		t.Errorf("DeterministicUID collided for different names: %q", a)
	}
	for _, uid := range []string{a, c, NewUID()} {
		if !strings.HasPrefix(uid, "2.25.") {
			t.Errorf("UID %q lacks the 2.25 root", uid)
		}
		if len(uid) > 64 {
			t.Errorf("UID %q exceeds 64 characters", uid)
		}
	}
}
