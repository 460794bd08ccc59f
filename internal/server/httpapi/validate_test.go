package httpapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateNewUser_Valid(t *testing.T) {
	for _, pw := range []string{"Pass1234", "Pass_word", "aB!aaaaa", "Abcdefghijklmnopq.rs"} {
		errs := validateNewUser(registerRequest{Name: "Tester", Email: "first.last@mail.example.com", Password: pw})
		assert.Empty(t, errs, pw)
	}
}

func TestValidateNewUser_OneErrorPerField(t *testing.T) {
	// Empty fails Required first and never reaches the pattern rules.
	errs := validateNewUser(registerRequest{})
	assert.Equal(t, []FieldError{
		{Name: "name", Message: "missing"},
		{Name: "email", Message: "missing"},
		{Name: "password", Message: "missing"},
	}, errs)
}

func TestValidateNewUser_Email(t *testing.T) {
	tests := []struct {
		email string
		ok    bool
	}{
		{"tester@example.com", true},
		{"Tester@Example.COM", true},
		{"te.st@sub.example.org", true},
		{"t@example.com", false},
		{"tester@example", false},
		{"tester@@example.com", false},
		{"tester example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			_, bad := firstFailure(tt.email, emailRules)
			assert.Equal(t, !tt.ok, bad)
		})
	}
}

func TestValidateNewUser_NameLengthCountsRunes(t *testing.T) {
	name := "A"
	for len([]rune(name)) < maxNameLen {
		name += "ö"
	}
	_, bad := firstFailure(name, nameRules)
	assert.False(t, bad)

	e, bad := firstFailure(name+"ö", nameRules)
	assert.True(t, bad)
	assert.Equal(t, FieldError{Name: "name", Message: "length", Max: maxNameLen}, e)
}
