package validate

import (
	"strings"
	"testing"
)

func TestAmount(t *testing.T) {
	valid := []struct {
		in   string
		want string
	}{
		{"150", "150"},
		{"150.50", "150.5"},
		{"150,50", "150.5"},
		{" 0.01 ", "0.01"},
		{"999999.99", "999999.99"},
		{"1.2", "1.2"},
	}
	for _, tc := range valid {
		amount, err := Amount(tc.in)
		if err != nil {
			t.Errorf("Amount(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if amount.String() != tc.want {
			t.Errorf("Amount(%q) = %s, want %s", tc.in, amount, tc.want)
		}
	}

	invalid := []struct {
		in      string
		wantErr error
	}{
		{"abc", ErrAmountFormat},
		{"", ErrAmountFormat},
		{"$150", ErrAmountFormat},
		{"0", ErrAmountNotPositive},
		{"-10", ErrAmountNotPositive},
		{"1000000", ErrAmountTooLarge},
		{"150.505", ErrAmountPrecision},
		{"0.001", ErrAmountPrecision},
	}
	for _, tc := range invalid {
		if _, err := Amount(tc.in); err != tc.wantErr {
			t.Errorf("Amount(%q) error = %v, want %v", tc.in, err, tc.wantErr)
		}
	}
}

func TestUserRef(t *testing.T) {
	tests := []struct {
		in           string
		wantID       int64
		wantUsername string
		wantErr      bool
	}{
		{"123456789", 123456789, "", false},
		{" 42 ", 42, "", false},
		{"@johndoe", 0, "johndoe", false},
		{"johndoe", 0, "johndoe", false},
		{"user_name_1", 0, "user_name_1", false},
		{"", 0, "", true},
		{"0", 0, "", true},
		{"-5", 0, "", true},
		{"99999999999", 0, "", true}, // out of Telegram ID range
		{"@abc", 0, "", true},        // username too short
		{"@has space", 0, "", true},
		{"@" + strings.Repeat("a", 33), 0, "", true},
	}
	for _, tc := range tests {
		id, username, err := UserRef(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("UserRef(%q) expected error, got id=%d username=%q", tc.in, id, username)
			}
			continue
		}
		if err != nil {
			t.Errorf("UserRef(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if id != tc.wantID || username != tc.wantUsername {
			t.Errorf("UserRef(%q) = (%d, %q), want (%d, %q)", tc.in, id, username, tc.wantID, tc.wantUsername)
		}
	}
}

func TestDescription(t *testing.T) {
	if _, err := Description("Ad placement 7 days"); err != nil {
		t.Errorf("unexpected error for valid description: %v", err)
	}

	// Exactly at the bounds.
	if _, err := Description(strings.Repeat("x", 10)); err != nil {
		t.Errorf("min-length description rejected: %v", err)
	}
	if _, err := Description(strings.Repeat("x", 200)); err != nil {
		t.Errorf("max-length description rejected: %v", err)
	}

	rejected := []string{
		"",
		"short",
		"         ", // whitespace only
		strings.Repeat("x", 201),
	}
	for _, in := range rejected {
		if _, err := Description(in); err == nil {
			t.Errorf("Description(%q) expected error", in)
		}
	}

	// Surrounding whitespace is trimmed before the length check.
	got, err := Description("  Ad placement 7 days  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Ad placement 7 days" {
		t.Errorf("Description did not trim: %q", got)
	}
}

func TestInvoiceID(t *testing.T) {
	if !InvoiceID("INV-260216-A7B3") {
		t.Error("valid invoice id rejected")
	}
	for _, in := range []string{"INV-123", "invoice-260216-A7B3", "INV-260216-a7b3", "INV-260216-A7B", ""} {
		if InvoiceID(in) {
			t.Errorf("InvoiceID(%q) should be false", in)
		}
	}
}
