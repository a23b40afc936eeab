package sessionid

import (
	"strings"
	"testing"
)

func TestNew_Format(t *testing.T) {
	id := New("cmd", "ssh://deploy@build-03.internal:2222")
	if !strings.HasPrefix(id, "cmd-build-03.internal-") {
		t.Errorf("New() = %q, want cmd-build-03.internal- prefix", id)
	}
	if parts := strings.Split(id, "-"); len(parts) < 4 {
		t.Errorf("New() = %q, want kind-target-timestamp-suffix shape", id)
	}
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New("ssh", "host")
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

func TestSanitize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "local"},
		{"Example.COM", "example.com"},
		{"ssh://alice:pw@host:22?key=/k", "host"},
		{"host_name!", "host-name-"},
		{"10.0.0.5:2222", "10.0.0.5"},
	}
	for _, c := range cases {
		if got := sanitize(c.in); got != c.want {
			t.Errorf("sanitize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSanitize_Truncates(t *testing.T) {
	long := strings.Repeat("a", 64)
	if got := sanitize(long); len(got) != 32 {
		t.Errorf("sanitize(long) length = %d, want 32", len(got))
	}
}
