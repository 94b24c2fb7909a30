package hash

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "already normalized",
			input: "hello\nworld",
			want:  "hello\nworld",
		},
		{
			name:  "crlf line endings",
			input: "hello\r\nworld\r\n",
			want:  "hello\nworld",
		},
		{
			name:  "trailing whitespace per line",
			input: "hello  \nworld\t\n",
			want:  "hello\nworld",
		},
		{
			name:  "surrounding blank lines",
			input: "\n\n  hello\n\n",
			want:  "hello",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("<text>hello</text>\r\n")
	b := Fingerprint("<text>hello</text>")

	if a != b {
		t.Errorf("Fingerprint() differs for equivalent content: %s vs %s", a, b)
	}

	if len(a) != 64 {
		t.Errorf("Fingerprint() length = %d, want 64", len(a))
	}

	if Fingerprint("one") == Fingerprint("two") {
		t.Error("Fingerprint() collided for different content")
	}
}

func TestEqual(t *testing.T) {
	if !Equal("note body  ", "note body") {
		t.Error("Equal() expected trailing whitespace to be ignored")
	}

	if Equal("note body", "Note body") {
		t.Error("Equal() expected case to matter")
	}
}

func BenchmarkFingerprint(b *testing.B) {
	content := "<text>a reasonably long note body with some words in it</text>\n"

	for i := 0; i < b.N; i++ {
		Fingerprint(content)
	}
}
