// Package keypad turns key labels into calculator events.
//
// A key sequence is a whitespace-separated list of fields; each field is
// split greedily into the longest known key labels, so "12+3=" and
// "1 2 + 3 =" produce the same events.
package keypad

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/openfroyo/pocketcalc/pkg/calculator"
)

// keys maps lower-case key labels to events.
var keys = map[string]calculator.Event{
	".":    calculator.DecimalPoint(),
	",":    calculator.DecimalPoint(),
	"+":    calculator.OperatorKey(calculator.OperatorAdd),
	"-":    calculator.OperatorKey(calculator.OperatorSubtract),
	"*":    calculator.OperatorKey(calculator.OperatorMultiply),
	"x":    calculator.OperatorKey(calculator.OperatorMultiply),
	"×":    calculator.OperatorKey(calculator.OperatorMultiply),
	"/":    calculator.OperatorKey(calculator.OperatorDivide),
	"÷":    calculator.OperatorKey(calculator.OperatorDivide),
	"=":    calculator.Equals(),
	"c":    calculator.Clear(),
	"ac":   calculator.ClearAll(),
	"bs":   calculator.Backspace(),
	"<":    calculator.Backspace(),
	"⌫":    calculator.Backspace(),
	"sqrt": calculator.Sqrt(),
	"√":    calculator.Sqrt(),
	"log":  calculator.Log(),
	"m+":   calculator.MemoryAdd(),
	"m-":   calculator.MemorySubtract(),
	"mr":   calculator.MemoryRecall(),
	"mc":   calculator.MemoryClear(),
}

// labels are the canonical labels, used by Label.
var labels = map[calculator.EventKind]string{
	calculator.EventDecimalPoint:   ".",
	calculator.EventEquals:         "=",
	calculator.EventClear:          "C",
	calculator.EventClearAll:       "AC",
	calculator.EventBackspace:      "BS",
	calculator.EventSqrt:           "sqrt",
	calculator.EventLog:            "log",
	calculator.EventMemoryAdd:      "M+",
	calculator.EventMemorySubtract: "M-",
	calculator.EventMemoryRecall:   "MR",
	calculator.EventMemoryClear:    "MC",
}

// byLength holds every key label, longest first.
var byLength []string

func init() {
	for k := range keys {
		byLength = append(byLength, k)
	}
	sort.Slice(byLength, func(i, j int) bool {
		li, lj := len([]rune(byLength[i])), len([]rune(byLength[j]))
		if li != lj {
			return li > lj
		}
		return byLength[i] < byLength[j]
	})
}

// ParseKey maps a single key label to its event. Labels are case-insensitive.
func ParseKey(label string) (calculator.Event, error) {
	l := strings.ToLower(strings.TrimSpace(label))
	if len(l) == 1 && l[0] >= '0' && l[0] <= '9' {
		return calculator.Digit(int(l[0] - '0')), nil
	}
	if ev, ok := keys[l]; ok {
		return ev, nil
	}
	return calculator.Event{}, calculator.NewInvalidKeyError(label)
}

// ParseSequence parses a key sequence such as "2 + 3 x 4 =" or "M+MR".
func ParseSequence(seq string) ([]calculator.Event, error) {
	var events []calculator.Event
	for _, field := range strings.Fields(seq) {
		fieldEvents, err := tokenize(field)
		if err != nil {
			return nil, err
		}
		events = append(events, fieldEvents...)
	}
	return events, nil
}

// tokenize splits one field by longest match.
func tokenize(field string) ([]calculator.Event, error) {
	var events []calculator.Event
	rest := field
	for rest != "" {
		if c := rest[0]; c >= '0' && c <= '9' {
			events = append(events, calculator.Digit(int(c-'0')))
			rest = rest[1:]
			continue
		}

		lower := strings.ToLower(rest)
		matched := false
		for _, label := range byLength {
			if strings.HasPrefix(lower, label) {
				events = append(events, keys[label])
				// Labels are ASCII or single multi-byte runes whose lower
				// case has the same byte length.
				rest = rest[len(label):]
				matched = true
				break
			}
		}
		if !matched {
			r := []rune(rest)
			return nil, calculator.NewInvalidKeyError(string(r[0]))
		}
	}
	return events, nil
}

// Label returns the canonical key label for an event.
func Label(ev calculator.Event) string {
	switch ev.Kind {
	case calculator.EventDigit:
		return fmt.Sprintf("%d", ev.Digit)
	case calculator.EventOperator:
		return string(ev.Operator)
	}
	if l, ok := labels[ev.Kind]; ok {
		return l
	}
	return string(ev.Kind)
}

// FormatSequence renders events as a space-separated key sequence.
func FormatSequence(events []calculator.Event) string {
	parts := make([]string, 0, len(events))
	for _, ev := range events {
		parts = append(parts, Label(ev))
	}
	return strings.Join(parts, " ")
}

// Pump reads key sequences line by line from r and sends the events to out.
// Blank lines and lines starting with '#' are skipped. Pump does not close out.
func Pump(ctx context.Context, r io.Reader, out chan<- calculator.Event) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		events, err := ParseSequence(text)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		for _, ev := range events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read keys: %w", err)
	}
	return nil
}
