package utils

import "testing"

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{"manager@corp.io", false},
		{"first.last+leave@sub.corp.io", false},
		{"no-at-sign.corp.io", true},
		{"missing@tld", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Boss@Corp.IO "); got != "boss@corp.io" {
		t.Errorf("NormalizeEmail() = %q, want %q", got, "boss@corp.io")
	}
}

func TestSanitizeString(t *testing.T) {
	got := SanitizeString("line one\nline\x00 two\x07\t")
	want := "line one\nline two\t"
	if got != want {
		t.Errorf("SanitizeString() = %q, want %q", got, want)
	}
}
