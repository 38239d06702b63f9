package kdbipc

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
	isatty "github.com/mattn/go-isatty"
)

// diagOut and diagColorEnabled mirror the teacher's single package-level
// logger: one shared, swappable sink for String()'s diagnostic
// rendering, gated to color only when stdout is an attached,
// colorable terminal (never when piped to a file or CI log).
var (
	diagColorEnabled = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	diagOut          = colorable.NewColorableStdout()
	tagColor         = color.New(color.FgCyan)
	symColor         = color.New(color.FgYellow)
	nullColor        = color.New(color.FgHiBlack)
)

// SetDiagnosticColor overrides whether String() emits ANSI color,
// regardless of the terminal auto-detection.
func SetDiagnosticColor(enabled bool) { diagColorEnabled = enabled }

// Dump writes k's diagnostic rendering followed by a newline to the
// package's diagnostic sink (stdout, colorized when attached to a
// terminal), the way a quick print-debugging call is meant to be used
// and removed, not wired into any protocol path.
func (k *K) Dump() {
	fmt.Fprintln(diagOut, k.String())
}

func colorize(c *color.Color, s string) string {
	if !diagColorEnabled {
		return s
	}
	return c.Sprint(s)
}

// String renders k in a q-like diagnostic syntax. It is intended for
// logging and debugging, not for round-tripping: no parser in this
// package reads this format back.
func (k *K) String() string {
	var b strings.Builder
	k.render(&b)
	return b.String()
}

func (k *K) render(b *strings.Builder) {
	switch {
	case k.typ == TypeNull:
		b.WriteString(colorize(nullColor, "::"))
	case k.typ == TypeError:
		b.WriteString(colorize(symColor, "'"+k.atomSym))
	case IsAtom(k.typ):
		b.WriteString(k.renderAtom())
	case k.typ == TypeCompoundList:
		b.WriteString("(")
		for i, c := range k.list {
			if i > 0 {
				b.WriteString(";")
			}
			c.render(b)
		}
		b.WriteString(")")
	case IsVector(k.typ):
		b.WriteString(k.renderVector())
	case k.typ == TypeDict:
		if k.IsKeyedTable() {
			b.WriteString(k.keys.String())
			b.WriteString("!")
			b.WriteString(k.values.String())
			return
		}
		b.WriteString(k.keys.String())
		b.WriteString("!")
		b.WriteString(k.values.String())
	case k.typ == TypeTable:
		b.WriteString(colorize(tagColor, "+"))
		b.WriteString("`")
		b.WriteString(strings.Join(k.keys.symbols, "`"))
		b.WriteString("!")
		b.WriteString(k.values.String())
	default:
		fmt.Fprintf(b, "<type %d>", k.typ)
	}
}

func (k *K) renderAtom() string {
	switch k.typ {
	case TypeBoolean:
		if k.atomBool {
			return "1b"
		}
		return "0b"
	case TypeGUID:
		return k.atomGUID.String()
	case TypeByte:
		return "0x" + strconv.FormatUint(k.atomNum, 16)
	case TypeShort:
		return strconv.FormatInt(int64(int16(uint16(k.atomNum))), 10) + "h"
	case TypeInt:
		return strconv.FormatInt(int64(int32(uint32(k.atomNum))), 10) + "i"
	case TypeLong:
		return strconv.FormatInt(int64(k.atomNum), 10)
	case TypeReal:
		return strconv.FormatFloat(float64(k.atomReal), 'g', -1, 32) + "e"
	case TypeFloat:
		return strconv.FormatFloat(k.atomF64, 'g', -1, 64)
	case TypeChar:
		return "\"" + string(k.atomChar) + "\""
	case TypeSymbol:
		return colorize(symColor, "`"+k.atomSym)
	case TypeTimestamp:
		return k.Timestamp().Format("2006.01.02D15:04:05.000000000")
	case TypeDate:
		return k.Date().Format("2006.01.02")
	case TypeTimespan:
		return k.Timespan().String()
	default:
		return fmt.Sprintf("<atom type %d>", k.typ)
	}
}

func (k *K) renderVector() string {
	atom := AtomType(k.typ)
	if atom == TypeSymbol {
		return colorize(tagColor, "`") + strings.Join(k.symbols, "`")
	}
	if atom == TypeChar {
		return "\"" + string(k.bytes) + "\""
	}
	parts := make([]string, k.vecLen)
	for i := 0; i < k.vecLen; i++ {
		parts[i] = k.Index(i).renderAtom()
	}
	return colorize(tagColor, "(") + strings.Join(parts, " ") + colorize(tagColor, ")")
}
