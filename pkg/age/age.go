// Package age converts between the (years, months) pair shown to field
// operators and the single total-months integer stored on a record.
package age

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Value is an animal age kept in three synchronized representations.
// TotalMonths == Years*12 + Months and Months is always in [0, 11].
type Value struct {
	Years       int `json:"years"`
	Months      int `json:"months"`
	TotalMonths int `json:"totalMonths"`
}

// IsZero reports whether no age was entered.
func (v Value) IsZero() bool { return v.TotalMonths == 0 }

// Format renders the value for display: "2 years 6 months", dropping a
// zero years or zero months part. A zero value renders "0 months".
func (v Value) Format() string {
	if v.Years == 0 {
		return fmt.Sprintf("%d months", v.Months)
	}
	if v.Months == 0 {
		return fmt.Sprintf("%d years", v.Years)
	}
	return fmt.Sprintf("%d years %d months", v.Years, v.Months)
}

// ParseError reports free-text input that matches neither accepted
// shape. Callers must surface it rather than guess.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("age: unrecognized input %q (want \"<N> yr <M> months\" or total months)", e.Input)
}

// FromYearsMonths builds a Value, carrying overflow months into years:
// 1 year 14 months becomes 2 years 2 months. Negative parts clamp to
// zero.
func FromYearsMonths(years, months int) Value {
	if years < 0 {
		years = 0
	}
	if months < 0 {
		months = 0
	}
	years += months / 12
	months %= 12
	return Value{
		Years:       years,
		Months:      months,
		TotalMonths: years*12 + months,
	}
}

// FromTotalMonths builds a Value from a total-months count.
func FromTotalMonths(n int) Value {
	if n < 0 {
		n = 0
	}
	return Value{
		Years:       n / 12,
		Months:      n % 12,
		TotalMonths: n,
	}
}

// yearMonthRe accepts "2yr 6 months", "2 years 6 months" and similar.
var yearMonthRe = regexp.MustCompile(`(?i)^(\d+)\s*(?:yr|year)s?\s*(\d+)\s*months?$`)

// Parse recognizes exactly two literal shapes: "<N> yr <M> months"
// (with "year"/"years" accepted) and a bare integer interpreted as
// total months. Anything else is a *ParseError.
func Parse(s string) (Value, error) {
	trimmed := strings.TrimSpace(s)

	if m := yearMonthRe.FindStringSubmatch(trimmed); m != nil {
		years, _ := strconv.Atoi(m[1])
		months, _ := strconv.Atoi(m[2])
		return FromYearsMonths(years, months), nil
	}

	if isDigits(trimmed) {
		total, err := strconv.Atoi(trimmed)
		if err != nil {
			return Value{}, &ParseError{Input: s}
		}
		return FromTotalMonths(total), nil
	}

	return Value{}, &ParseError{Input: s}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
