package validate_test

import (
	"errors"
	"math/rand/v2"
	"regexp"
	"strconv"
	"testing"

	"tg-channel-cleaner/internal/domain/faults"
	"tg-channel-cleaner/internal/domain/validate"
)

func TestPhone(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want bool
	}{
		{"+12345678901", true},
		{"12345678", true},
		{"+123456789012345", true},
		{"1234567", false},
		{"+1234567890123456", false},
		{"+01234567890", false},
		{"++12345678", false},
		{"+1234 5678", false},
		{"", false},
		{"12345678\n", false},
		{"phone123456", false},
	}

	for _, tc := range cases {
		if got := validate.Phone(tc.in); got != tc.want {
			t.Errorf("Phone(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

// Случайные строки из алфавита телефона сверяются с эталонным выражением.
func TestPhoneMatchesReferencePattern(t *testing.T) {
	t.Parallel()

	ref := regexp.MustCompile(`^\+?[1-9]\d{7,14}$`)
	alphabet := []byte("+0123456789 a")
	r := rand.New(rand.NewPCG(1, 2))
	for range 2000 {
		n := r.IntN(18)
		buf := make([]byte, n)
		for i := range buf {
			buf[i] = alphabet[r.IntN(len(alphabet))]
		}
		s := string(buf)
		if got, want := validate.Phone(s), ref.MatchString(s); got != want {
			t.Fatalf("Phone(%q) = %v, reference %v", s, got, want)
		}
	}
}

func TestChannelID(t *testing.T) {
	t.Parallel()

	for _, id := range []int64{-1, -100123456789, -1001234567890, -9223372036854775808} {
		got, err := validate.ChannelID(strconv.FormatInt(id, 10))
		if err != nil || got != id {
			t.Errorf("ChannelID(%d) = %d, %v", id, got, err)
		}
	}

	for _, in := range []string{"0", "1", "100123456789", "abc", "", "-12x", "1.5"} {
		_, err := validate.ChannelID(in)
		var verr *faults.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("ChannelID(%q) error = %v, want ValidationError", in, err)
		}
	}

	if got, err := validate.ChannelID(" -100500 "); err != nil || got != -100500 {
		t.Errorf("ChannelID with spaces = %d, %v", got, err)
	}
}

func TestChannelIDMessages(t *testing.T) {
	t.Parallel()

	_, err := validate.ChannelID("5")
	if err == nil || err.Error() != "Channel ID must be negative (e.g., -100123456789)" {
		t.Fatalf("non-negative message = %v", err)
	}
	_, err = validate.ChannelID("x")
	if err == nil || err.Error() != "Invalid Channel ID format" {
		t.Fatalf("format message = %v", err)
	}
}

func TestAppCredentials(t *testing.T) {
	t.Parallel()

	if id, err := validate.AppID("12345"); err != nil || id != 12345 {
		t.Fatalf("AppID(12345) = %d, %v", id, err)
	}
	for _, in := range []string{"", "-1", "12a", "0", "1.0"} {
		if _, err := validate.AppID(in); err == nil {
			t.Errorf("AppID(%q) error = nil", in)
		}
	}

	if err := validate.AppHash("0123456789abcdef0123456789abcdef"); err != nil {
		t.Fatalf("AppHash(valid) = %v", err)
	}
	for _, in := range []string{"0123456789ABCDEF0123456789ABCDEF", "0123456789abcdef", "0123456789abcdef0123456789abcdeg", ""} {
		if err := validate.AppHash(in); err == nil {
			t.Errorf("AppHash(%q) error = nil", in)
		}
	}
}

func TestLoginCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"12345", "12345", false},
		{"1 2 3 4 5", "12345", false},
		{" 12 345 ", "12345", false},
		{"1234", "", true},
		{"123456", "", true},
		{"12a45", "", true},
		{"/cancel", "", true},
	}
	for _, tc := range cases {
		got, err := validate.LoginCode(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("LoginCode(%q) = %q, %v", tc.in, got, err)
		}
	}
}

func TestIsConfirmation(t *testing.T) {
	t.Parallel()

	const phrase = "CONFIRM DELETE"
	for _, in := range []string{"Confirm Delete", "CONFIRM DELETE", "confirm delete", " confirm delete "} {
		if !validate.IsConfirmation(in, phrase) {
			t.Errorf("IsConfirmation(%q) = false", in)
		}
	}
	for _, in := range []string{"confirm", "delete", "CONFIRM  DELETE", "CONFIRM ADMIN DELETE", ""} {
		if validate.IsConfirmation(in, phrase) {
			t.Errorf("IsConfirmation(%q) = true", in)
		}
	}
}
