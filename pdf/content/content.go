// Package content builds PDF content stream operator sequences.
package content

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Operator represents a PDF content stream operator.
type Operator string

// Operators used by the drawing primitives.
const (
	OpSaveState    Operator = "q"
	OpRestoreState Operator = "Q"
	OpSetCTM       Operator = "cm"
	OpSetLineWidth Operator = "w"

	OpRectangle     Operator = "re"
	OpStroke        Operator = "S"
	OpFill          Operator = "f"
	OpFillAndStroke Operator = "B"

	OpBeginText Operator = "BT"
	OpEndText   Operator = "ET"
	OpSetFont   Operator = "Tf"
	OpTextMove  Operator = "Td"
	OpShowText  Operator = "Tj"

	OpSetFillRGB   Operator = "rg"
	OpSetStrokeRGB Operator = "RG"

	OpPaintXObject Operator = "Do"
)

// FmtNum renders a coordinate or dimension with the shortest decimal
// representation that round-trips.
func FmtNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Op joins numeric operands and an operator into one content stream line.
func Op(op Operator, operands ...float64) string {
	parts := make([]string, 0, len(operands)+1)
	for _, v := range operands {
		parts = append(parts, FmtNum(v))
	}
	parts = append(parts, string(op))
	return strings.Join(parts, " ")
}

// EscapeString escapes a literal string body for embedding between
// parentheses: backslashes and both parenthesis characters gain a
// backslash prefix.
func EscapeString(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '(':
			b.WriteString("\\(")
		case ')':
			b.WriteString("\\)")
		case '\\':
			b.WriteString("\\\\")
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// ShowText renders the operator line that shows the given text. The text
// is NFC-normalized before escaping so that visually identical inputs
// produce identical bytes.
func ShowText(text string) string {
	return "(" + EscapeString(norm.NFC.String(text)) + ") " + string(OpShowText)
}

// FormatDate formats a time as a PDF date string (the /M entry of a
// signature dictionary).
func FormatDate(t time.Time) string {
	_, offset := t.Zone()
	offsetHours := offset / 3600
	offsetMinutes := (offset % 3600) / 60

	sign := "+"
	if offset < 0 {
		sign = "-"
		offsetHours = -offsetHours
		offsetMinutes = -offsetMinutes
	}

	var b strings.Builder
	b.WriteString("D:")
	b.WriteString(pad4(t.Year()))
	b.WriteString(pad2(int(t.Month())))
	b.WriteString(pad2(t.Day()))
	b.WriteString(pad2(t.Hour()))
	b.WriteString(pad2(t.Minute()))
	b.WriteString(pad2(t.Second()))
	b.WriteString(sign)
	b.WriteString(pad2(offsetHours))
	b.WriteString("'")
	b.WriteString(pad2(offsetMinutes))
	b.WriteString("'")
	return b.String()
}

func pad2(v int) string {
	s := strconv.Itoa(v)
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

func pad4(v int) string {
	s := strconv.Itoa(v)
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}
