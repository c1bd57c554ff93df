package sharding

import (
	"strings"
	"testing"
)

func TestGetShardID_Deterministic(t *testing.T) {
	a := GetShardID("user-42")
	b := GetShardID("user-42")
	if a != b {
		t.Fatalf("shard ID not deterministic: %d vs %d", a, b)
	}
	if a < 0 || a >= ShardCount {
		t.Fatalf("shard ID out of range: %d", a)
	}
}

func TestActivitySubject_Format(t *testing.T) {
	subject := ActivitySubject("user-42")
	if !strings.HasPrefix(subject, "app.activity.") {
		t.Fatalf("unexpected subject prefix: %q", subject)
	}
	if !strings.HasSuffix(subject, ".user.user-42") {
		t.Fatalf("unexpected subject suffix: %q", subject)
	}
}

func TestShardFromSubject(t *testing.T) {
	if got := ShardFromSubject("user-42", "app.activity.17.user.user-42"); got != 17 {
		t.Fatalf("expected shard 17 from subject, got %d", got)
	}
	// Malformed subject falls back to recomputation.
	want := GetShardID("user-42")
	if got := ShardFromSubject("user-42", "garbage"); got != want {
		t.Fatalf("expected fallback shard %d, got %d", want, got)
	}
}
