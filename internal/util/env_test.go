package util

import "testing"

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("PODGRAPH_TEST_INT", "42")
	t.Setenv("PODGRAPH_TEST_BAD_INT", "forty")
	t.Setenv("PODGRAPH_TEST_BOOL", "true")
	t.Setenv("PODGRAPH_TEST_STRING", "memory")

	if got := GetEnvInt("PODGRAPH_TEST_INT", 1); got != 42 {
		t.Fatalf("GetEnvInt() = %d, want 42", got)
	}
	if got := GetEnvInt("PODGRAPH_TEST_BAD_INT", 7); got != 7 {
		t.Fatalf("GetEnvInt() invalid = %d, want default 7", got)
	}
	if got := GetEnvInt("PODGRAPH_TEST_MISSING", 20); got != 20 {
		t.Fatalf("GetEnvInt() missing = %d, want default 20", got)
	}
	if !GetEnvBool("PODGRAPH_TEST_BOOL", false) {
		t.Fatalf("GetEnvBool() = false, want true")
	}
	if got := GetEnvString("PODGRAPH_TEST_STRING", "pgx"); got != "memory" {
		t.Fatalf("GetEnvString() = %q", got)
	}
	if got := GetEnv("PODGRAPH_TEST_MISSING"); got != "" {
		t.Fatalf("GetEnv() missing = %q", got)
	}
}
