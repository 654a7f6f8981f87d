package sanitizer

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "valid E.164 format",
			input: "+972541234567",
			want:  "+972541234567",
		},
		{
			name:  "with spaces",
			input: "+972 54 123 4567",
			want:  "+972541234567",
		},
		{
			name:  "with dashes",
			input: "+972-54-123-4567",
			want:  "+972541234567",
		},
		{
			name:  "us national format",
			input: "(650) 253-0000",
			want:  "+16502530000",
		},
		{
			name:  "leading and trailing spaces",
			input: "  +16502530000  ",
			want:  "+16502530000",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   ",
			want:  "",
		},
		{
			name:  "letters",
			input: "call me",
			want:  "",
		},
		{
			name:  "too short",
			input: "12345",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePhone(tt.input)
			if got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := NormalizePhone(got); got != "" && again != got {
				t.Errorf("NormalizePhone is not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trim spaces", "  Dana Levi  ", "Dana Levi"},
		{"multiple spaces between words", "Dana    Levi", "Dana Levi"},
		{"tabs and newlines", "Dana\t\nLevi", "Dana Levi"},
		{"empty string", "", ""},
		{"only whitespace", "   \t\n  ", ""},
		{"preserve special characters", " Zoë O'Brien ", "Zoë O'Brien"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeName(tt.input); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeCity(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  Tel   Aviv ", "Tel Aviv"},
		{"Zürich", "Zürich"},
		{"Paris\x00\x07", "Paris"},
		{"New\tYork", "New York"},
		{"\x1b", ""},
	}

	for _, tt := range tests {
		if got := NormalizeCity(tt.input); got != tt.want {
			t.Errorf("NormalizeCity(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Dana@Example.COM "); got != "dana@example.com" {
		t.Errorf("NormalizeEmail() = %q", got)
	}
}

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "ticket.pdf", "ticket.pdf"},
		{"spaces", "my boarding pass.pdf", "my_boarding_pass.pdf"},
		{"unix traversal", "../../etc/passwd.pdf", "passwd.pdf"},
		{"windows path", `C:\Users\dana\visa.pdf`, "visa.pdf"},
		{"hidden file", ".secret.pdf", "secret.pdf"},
		{"unicode", "résumé.pdf", "r_sum_.pdf"},
		{"only dots", "..", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SecureFilename(tt.input); got != tt.want {
				t.Errorf("SecureFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
