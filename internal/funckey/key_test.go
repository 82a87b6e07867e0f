package funckey

import "testing"

func TestParseRoundTrip(t *testing.T) {
	cases := []string{"echo@v1", "my-func@1-0-0", "a@b"}
	for _, s := range cases {
		k, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if got := k.String(); got != s {
			t.Errorf("Parse(%q).String() = %q, want %q", s, got, s)
		}
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := []string{"", "noat", "@v1", "name@", "UPPER@v1", "name@v 1"}
	for _, s := range cases {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", s)
		}
	}
}

func TestHostPrefix(t *testing.T) {
	k := Key{Name: "echo", Version: "v1"}
	if got, want := k.HostPrefix(), "v1.echo"; got != want {
		t.Errorf("HostPrefix() = %q, want %q", got, want)
	}
}

func TestValid(t *testing.T) {
	if !Valid("echo", "v1") {
		t.Error("Valid(echo, v1) = false, want true")
	}
	if Valid("", "v1") || Valid("echo", "") || Valid("Echo", "v1") {
		t.Error("Valid accepted invalid input")
	}
}
