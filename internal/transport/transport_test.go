package transport

import "testing"

func TestPlainText(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in, want string
	}{
		{in: "<p>hello</p>", want: "hello"},
		{in: `<p><span class="h-card"><a href="https://x/@bot">@<span>bot</span></a></span> 教えて</p>`, want: "@bot 教えて"},
		{in: "<p>a<br>b<br />c</p><p>d</p>", want: "a\nb\nc\n\nd"},
		{in: "&lt;3 &amp; more", want: "<3 & more"},
	}
	for _, tc := range cases {
		if got := PlainText(tc.in); got != tc.want {
			t.Fatalf("PlainText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseVisibility(t *testing.T) {
	t.Parallel()
	if v, err := ParseVisibility(""); err != nil || v != Public {
		t.Fatalf("ParseVisibility(\"\") = %v, %v", v, err)
	}
	if v, err := ParseVisibility(" Unlisted "); err != nil || v != Unlisted {
		t.Fatalf("ParseVisibility(Unlisted) = %v, %v", v, err)
	}
	if _, err := ParseVisibility("secret"); err == nil {
		t.Fatalf("ParseVisibility(secret) succeeded")
	}
}

func TestAccountLocal(t *testing.T) {
	t.Parallel()
	if !(Account{Acct: "alice"}).Local() {
		t.Fatalf("alice should be local")
	}
	if (Account{Acct: "bob@example.com"}).Local() {
		t.Fatalf("bob@example.com should not be local")
	}
}
