// Package forms validates submitted form fields before any backend call.
package forms

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Errors maps a field name to its single human-readable error.
type Errors map[string]string

// Rule checks one field against the full submission and returns false
// when the value is rejected.
type Rule struct {
	Message string
	Check   func(value string, values url.Values) bool
}

// Field is a named input with its rules, evaluated in order. Only the
// first failing rule is reported.
type Field struct {
	Name  string
	Rules []Rule
	// Secret fields are never echoed back to the client.
	Secret bool
}

// Schema is the ordered set of fields of one form.
type Schema []Field

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func Required(msg string) Rule {
	return Rule{Message: msg, Check: func(v string, _ url.Values) bool { return v != "" }}
}

func Email(msg string) Rule {
	return Rule{Message: msg, Check: func(v string, _ url.Values) bool { return emailPattern.MatchString(v) }}
}

func MinLen(n int, msg string) Rule {
	return Rule{Message: msg, Check: func(v string, _ url.Values) bool { return utf8.RuneCountInString(v) >= n }}
}

// TrimmedMinLen counts length after trimming surrounding whitespace.
func TrimmedMinLen(n int, msg string) Rule {
	return Rule{Message: msg, Check: func(v string, _ url.Values) bool { return utf8.RuneCountInString(strings.TrimSpace(v)) >= n }}
}

// Matches requires the value to equal the field named other exactly.
func Matches(other, msg string) Rule {
	return Rule{Message: msg, Check: func(v string, values url.Values) bool { return v == values.Get(other) }}
}

// Validate runs every field's rules and collects one error per field.
func (s Schema) Validate(values url.Values) Errors {
	errs := Errors{}
	for _, f := range s {
		v := values.Get(f.Name)
		for _, r := range f.Rules {
			if !r.Check(v, values) {
				errs[f.Name] = r.Message
				break
			}
		}
	}
	return errs
}

// Echo returns the submitted values of non-secret fields for re-display.
func (s Schema) Echo(values url.Values) map[string]string {
	out := make(map[string]string, len(s))
	for _, f := range s {
		if f.Secret {
			continue
		}
		out[f.Name] = values.Get(f.Name)
	}
	return out
}

const (
	msgEmail    = "Please enter a valid email."
	msgPassword = "Password must be at least 6 characters"
	msgName     = "Name must be at least 3 characters"
	msgConfirm  = "Passwords do not match"
)

var (
	emailField    = Field{Name: "email", Rules: []Rule{Required(msgEmail), Email(msgEmail)}}
	passwordField = Field{Name: "password", Secret: true, Rules: []Rule{Required(msgPassword), MinLen(6, msgPassword)}}
)

// LoginSchema validates the sign-in form.
var LoginSchema = Schema{emailField, passwordField}

// RegisterSchema validates the sign-up form.
var RegisterSchema = Schema{
	{Name: "name", Rules: []Rule{Required(msgName), TrimmedMinLen(3, msgName)}},
	emailField,
	passwordField,
	{Name: "confirm", Secret: true, Rules: []Rule{Matches("password", msgConfirm)}},
}
