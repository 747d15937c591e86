package object

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signature is a person line: "<name> <<email>> <unix_seconds> <±HHMM>"
// (spec.md §3).
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// String renders the signature in its serialized form.
func (s Signature) String() string {
	_, offset := s.When.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	hh := offset / 3600
	mm := (offset % 3600) / 60
	return fmt.Sprintf("%s <%s> %d %s%02d%02d", s.Name, s.Email, s.When.Unix(), sign, hh, mm)
}

// ParseSignature parses a person line back into a Signature.
func ParseSignature(line string) (Signature, error) {
	lt := strings.LastIndexByte(line, '<')
	gt := strings.LastIndexByte(line, '>')
	if lt < 0 || gt < 0 || gt < lt {
		return Signature{}, fmt.Errorf("object: malformed signature %q", line)
	}
	name := strings.TrimSpace(line[:lt])
	email := line[lt+1 : gt]

	rest := strings.TrimSpace(line[gt+1:])
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return Signature{}, fmt.Errorf("object: malformed signature timestamp %q", rest)
	}

	secs, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Signature{}, fmt.Errorf("object: malformed unix seconds %q: %w", fields[0], err)
	}

	tz := fields[1]
	if len(tz) != 5 || (tz[0] != '+' && tz[0] != '-') {
		return Signature{}, fmt.Errorf("object: malformed timezone %q", tz)
	}
	hh, err1 := strconv.Atoi(tz[1:3])
	mm, err2 := strconv.Atoi(tz[3:5])
	if err1 != nil || err2 != nil {
		return Signature{}, fmt.Errorf("object: malformed timezone %q", tz)
	}
	offset := hh*3600 + mm*60
	if tz[0] == '-' {
		offset = -offset
	}

	loc := time.FixedZone(tz, offset)
	return Signature{Name: name, Email: email, When: time.Unix(secs, 0).In(loc)}, nil
}
