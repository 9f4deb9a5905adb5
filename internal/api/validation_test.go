package api

import (
	"strings"
	"testing"
)

func TestDecodeAndValidate(t *testing.T) {
	type payload struct {
		Email string `json:"email" validate:"required,email"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"email":"a@example.com"}`, false},
		{"missing field", `{}`, true},
		{"bad email", `{"email":"nope"}`, true},
		{"unknown field", `{"email":"a@example.com","x":1}`, true},
		{"trailing data", `{"email":"a@example.com"} {"email":"b@example.com"}`, true},
		{"not json", `hello`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			err := decodeAndValidate(strings.NewReader(tt.body), &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeAndValidate(%q) error = %v, wantErr %v", tt.body, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := normalizeEmail("  Jo.Doe@Example.COM  "); got != "jo.doe@example.com" {
		t.Fatalf("normalizeEmail() = %q, want %q", got, "jo.doe@example.com")
	}
}

func TestUsernameRegex(t *testing.T) {
	valid := []string{"jodo123", "a_b", "a-b", "abc", strings.Repeat("x", 32)}
	invalid := []string{"ab", "Jodo", "has space", "semi;colon", "", strings.Repeat("x", 33), "émile"}

	for _, u := range valid {
		if !usernameRegex.MatchString(u) {
			t.Errorf("username %q rejected, want accepted", u)
		}
	}
	for _, u := range invalid {
		if usernameRegex.MatchString(u) {
			t.Errorf("username %q accepted, want rejected", u)
		}
	}
}

func TestSanitizeTextStripsMarkup(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"  padded  ", "padded"},
		{"<b>bold</b> move", "bold move"},
		{"<script>alert(1)</script>", ""},
	}

	for _, tt := range tests {
		if got := sanitizeText(tt.in); got != tt.want {
			t.Errorf("sanitizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
