package control

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidControlList is returned for a control-number list of the wrong
// length or with entries outside 0-127.
var ErrInvalidControlList = errors.New("invalid control number list")

// defaultNumbers keeps the numbering of the original camera-to-MIDI patch
// layout: means 1-3 and 10-12, max/min pairs after each mean block, medians
// 19-24.
var defaultNumbers = map[Identifier]uint8{
	{Blue, Mean}: 1, {Green, Mean}: 2, {Red, Mean}: 3,
	{Blue, Max}: 4, {Blue, Min}: 5,
	{Green, Max}: 6, {Green, Min}: 7,
	{Red, Max}: 8, {Red, Min}: 9,

	{Hue, Mean}: 10, {Saturation, Mean}: 11, {Value, Mean}: 12,
	{Hue, Max}: 13, {Hue, Min}: 14,
	{Saturation, Max}: 15, {Saturation, Min}: 16,
	{Value, Max}: 17, {Value, Min}: 18,

	{Blue, Median}: 19, {Green, Median}: 20, {Red, Median}: 21,
	{Hue, Median}: 22, {Saturation, Median}: 23, {Value, Median}: 24,
}

// Mapping assigns a control number to each identifier. It is built once and
// never mutated.
type Mapping struct {
	numbers map[Identifier]uint8
}

// Assignment is one row of a mapping table.
type Assignment struct {
	Identifier string `json:"identifier" yaml:"identifier"`
	Number     uint8  `json:"cc" yaml:"cc"`
}

// DefaultMapping returns the built-in control numbers.
func DefaultMapping() Mapping {
	m := Mapping{numbers: make(map[Identifier]uint8, len(defaultNumbers))}
	for id, n := range defaultNumbers {
		m.numbers[id] = n
	}
	return m
}

// NewMapping builds a mapping from an ordered list of control numbers.
//
// An empty list yields the defaults. For the minimal variant the list holds
// the six means. For the full variant it holds all 24 identifiers in emission
// order, or 18 entries covering mean, min and max in emission order with the
// medians left at their defaults.
func NewMapping(v Variant, numbers []int) (Mapping, error) {
	m := DefaultMapping()
	if len(numbers) == 0 {
		return m, nil
	}

	ids := v.Identifiers()
	if v == Full && len(numbers) == 18 {
		ids = ids[:0:0]
		for _, id := range Full.Identifiers() {
			if id.Kind != Median {
				ids = append(ids, id)
			}
		}
	}

	if len(numbers) != len(ids) {
		return Mapping{}, fmt.Errorf("%w: %s variant takes %s numbers, got %d",
			ErrInvalidControlList, v, expectedLengths(v), len(numbers))
	}

	for i, n := range numbers {
		if n < 0 || n > MaxValue {
			return Mapping{}, fmt.Errorf("%w: entry %d (%s) is %d, want 0-127",
				ErrInvalidControlList, i+1, ids[i], n)
		}
		m.numbers[ids[i]] = uint8(n)
	}
	return m, nil
}

// ParseList parses a comma or whitespace separated list of integers.
func ParseList(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidControlList, f)
		}
		out = append(out, n)
	}
	return out, nil
}

func expectedLengths(v Variant) string {
	if v == Minimal {
		return "6"
	}
	return "18 or 24"
}

// Number returns the control number assigned to id.
func (m Mapping) Number(id Identifier) uint8 {
	if n, ok := m.numbers[id]; ok {
		return n
	}
	return defaultNumbers[id]
}

// Table lists the variant's assignments in emission order.
func (m Mapping) Table(v Variant) []Assignment {
	ids := v.Identifiers()
	out := make([]Assignment, len(ids))
	for i, id := range ids {
		out[i] = Assignment{Identifier: id.String(), Number: m.Number(id)}
	}
	return out
}
