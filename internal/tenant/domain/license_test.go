package domain

import "testing"

func TestNormalizeDoc(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"12.345.678/0001-90", "12345678000190"},
		{"12345678000190", "12345678000190"},
		{"  12.345.678/0001-90  ", "12345678000190"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeDoc(c.in); got != c.want {
			t.Errorf("NormalizeDoc(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestValidDoc(t *testing.T) {
	valid := []string{
		"12345678000190",
		"12.345.678/0001-90",
	}
	for _, doc := range valid {
		if !ValidDoc(doc) {
			t.Errorf("ValidDoc(%q) = false, want true", doc)
		}
	}

	invalid := []string{
		"",
		"1234567800019",    // 13 digits
		"123456780001901",  // 15 digits
		"1234567800019a",   // non-numeric
		"123.456.789-09",   // 11-digit personal document
	}
	for _, doc := range invalid {
		if ValidDoc(doc) {
			t.Errorf("ValidDoc(%q) = true, want false", doc)
		}
	}
}
