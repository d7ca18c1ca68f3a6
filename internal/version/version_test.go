package version

import "testing"

func TestString(t *testing.T) {
	orig := [3]string{Version, GitSHA, BuildTime}
	t.Cleanup(func() { Version, GitSHA, BuildTime = orig[0], orig[1], orig[2] })

	Version, GitSHA, BuildTime = "v0.3.0", "abc1234", "2025-06-01T00:00:00Z"
	want := "tagpose v0.3.0 (commit abc1234, built 2025-06-01T00:00:00Z)"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
