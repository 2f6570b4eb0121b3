// Package phn validates British Columbia Personal Health Numbers.
//
// A PHN is ten ASCII digits beginning with 9. Digits two through nine carry a
// mod-11 weighted checksum whose result must equal the tenth digit. The check
// value is NOT reduced modulo 11 a second time: a computed check of 10 or 11
// can never match a single digit, so those numbers are always rejected.
package phn

import "strings"

// Length is the number of digits in a Personal Health Number.
const Length = 10

// leadDigit is the required first digit of every PHN.
const leadDigit = '9'

// weights are applied to digits 1..8 (0-indexed) in order.
var weights = [8]int{2, 4, 8, 5, 10, 9, 7, 3}

// PHN is a Personal Health Number. The zero value is not valid.
type PHN string

// Valid reports whether p is a structurally and checksum-valid PHN.
func (p PHN) Valid() bool {
	return Valid(string(p))
}

// Masked returns p with all but the last four digits hidden.
func (p PHN) Masked() string {
	return Mask(string(p))
}

// Valid reports whether s is a valid Personal Health Number. It never panics
// and treats every malformed input as invalid.
func Valid(s string) bool {
	check, ok := CheckDigit(s)
	if !ok {
		return false
	}
	return int(s[Length-1]-'0') == check
}

// CheckDigit returns the check value computed from digits 1..8 of s. The
// result is in the range 1..11; values of 10 and 11 cannot be satisfied by
// any final digit. ok is false when s is not ten ASCII digits starting
// with 9, in which case no checksum is computed.
func CheckDigit(s string) (check int, ok bool) {
	if !wellFormed(s) {
		return 0, false
	}

	checksum := 0
	for i := 1; i < 9; i++ {
		digit := int(s[i] - '0')
		checksum += (digit * weights[i-1]) % 11
	}
	return 11 - (checksum % 11), true
}

func wellFormed(s string) bool {
	if len(s) != Length || s[0] != leadDigit {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Mask hides every character of s except the last four. Inputs of four
// characters or fewer are fully masked.
func Mask(s string) string {
	r := []rune(s)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}
