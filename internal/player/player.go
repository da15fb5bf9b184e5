// Copyright 2024 Matthew P. Dargan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package player guesses basketball-reference player photos from free text.
//
// The guess is a heuristic: the first pair of capitalized words in the text
// is taken to be a player's first and last name. Team names and other
// capitalized phrases produce wrong guesses, and that is accepted.
package player

import (
	"fmt"
	"regexp"
	"strings"
)

// ImageBaseURL is the basketball-reference player headshot location.
const ImageBaseURL = "https://www.basketball-reference.com/req/202106291/images/players/"

// A word is an uppercase letter followed by lowercase letters, optionally
// repeated so that names like LeBron and McCollum count as one word.
var namePattern = regexp.MustCompile(`\b([A-Z][a-z]+(?:[A-Z][a-z]+)*) ([A-Z][a-z]+(?:[A-Z][a-z]+)*)\b`)

// Name returns the first two consecutive capitalized words in s.
func Name(s string) (first, last string, ok bool) {
	m := namePattern.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// Initials returns the basketball-reference player id for a name: up to five
// letters of the last name, up to two of the first name, then "01".
func Initials(first, last string) string {
	return strings.ToLower(prefix(last, 5)) + strings.ToLower(prefix(first, 2)) + "01"
}

func prefix(s string, n int) string {
	rs := []rune(s)
	if len(rs) < n {
		return s
	}
	return string(rs[:n])
}

// ImageURL returns the guessed headshot URL for the first name found in s.
// It reports false when s contains no name.
func ImageURL(s string) (string, bool) {
	first, last, ok := Name(s)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s%s.jpg", ImageBaseURL, Initials(first, last)), true
}
