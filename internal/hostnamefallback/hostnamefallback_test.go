package hostnamefallback

import "testing"

func TestNeedsFallback(t *testing.T) {
	cases := []struct {
		name    string
		sysName string
		want    bool
	}{
		{"empty", "", true},
		{"whitespace-only", "   ", true},
		{"unknown-exact", "Unknown", true},
		{"unknown-case-insensitive", "unknown", true},
		{"real-name", "sw1.example.com", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := NeedsFallback(c.sysName); got != c.want {
				t.Errorf("NeedsFallback(%q) = %v, want %v", c.sysName, got, c.want)
			}
		})
	}
}

func TestResolveRejectsInvalidAddress(t *testing.T) {
	r := New()
	if _, err := r.Resolve(nil, "not-an-ip"); err == nil {
		t.Fatal("expected error for invalid address")
	}
}
