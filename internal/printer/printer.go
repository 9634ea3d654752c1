// Package printer renders command output: status lines, tables and error
// boxes. Colour is only emitted when writing to a terminal.
package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/hay-kot/criterio"
	"golang.org/x/term"

	"github.com/hay-kot/agenda/internal/core/reservation"
)

// ANSI color codes (Tokyo Night palette)
const (
	ColorReset     = "\033[0m"
	ColorRed       = "\033[38;2;215;95;107m"  // #d75f6b
	ColorGreen     = "\033[38;2;158;206;106m" // #9ece6a
	ColorYellow    = "\033[38;2;224;175;104m" // #e0af68
	ColorGray      = "\033[38;2;86;95;137m"   // #565f89
	ColorBold      = "\033[1m"
	ColorUnderline = "\033[4m"
)

// Symbols
const (
	Check = "✔"
	Cross = "✘"
	Dot   = "•"
	Star  = "★"
)

type ctxKey struct{}

// Printer handles formatted output with colors and styles
type Printer struct {
	writer io.Writer
	color  bool
}

// New creates a Printer for w. Colour is enabled when w is a terminal and
// NO_COLOR is unset.
func New(w io.Writer) *Printer {
	return &Printer{writer: w, color: colorEnabled(w)}
}

// NewWithColor creates a Printer with colour forced on or off.
func NewWithColor(w io.Writer, color bool) *Printer {
	return &Printer{writer: w, color: color}
}

func colorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// NewContext returns a context with the printer attached
func NewContext(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Ctx retrieves the printer from context, or creates a default one
func Ctx(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stderr)
}

// FatalError prints a formatted error box and does NOT exit
// Caller should handle exit code
func (p *Printer) FatalError(err error) {
	if err == nil {
		return
	}

	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		p.printValidationErrors(err, fieldErrs)
		return
	}

	lines := []string{
		p.colorize(ColorRed, "╭ Error"),
		p.colorize(ColorRed, "│") + " " + p.colorize(ColorGray, err.Error()),
		p.colorize(ColorRed, "╵"),
	}
	p.write(strings.Join(lines, "\n"))
}

// printValidationErrors formats criterio.FieldErrors as one line per field.
func (p *Printer) printValidationErrors(wrappedErr error, fieldErrs criterio.FieldErrors) {
	// keep the wrapping context, e.g. "load config: invalid config"
	errContext := ""
	if idx := strings.Index(wrappedErr.Error(), fieldErrs.Error()); idx > 0 {
		errContext = strings.TrimSuffix(wrappedErr.Error()[:idx], ": ")
	}

	p.write(p.colorize(ColorRed, "╭ Validation Error"))
	if errContext != "" {
		p.write(p.colorize(ColorRed, "│") + " " + p.colorize(ColorGray, errContext))
		p.write(p.colorize(ColorRed, "│"))
	}

	for _, fe := range fieldErrs {
		line := p.colorize(ColorRed, "│") + " " + p.colorize(ColorRed, Cross) + " "
		if fe.Field != "" {
			line += p.colorize(ColorGray, fe.Field+": ")
		}
		p.write(line + fe.Err.Error())
	}

	p.write(p.colorize(ColorRed, "╵"))
}

// Errorf prints an error message in red
func (p *Printer) Errorf(format string, args ...any) {
	p.write(p.colorize(ColorRed, Cross+" "+fmt.Sprintf(format, args...)))
}

// Successf prints a success message in green
func (p *Printer) Successf(format string, args ...any) {
	p.write(p.colorize(ColorGreen, Check+" "+fmt.Sprintf(format, args...)))
}

// Infof prints an info message in gray
func (p *Printer) Infof(format string, args ...any) {
	p.write(p.colorize(ColorGray, Dot+" "+fmt.Sprintf(format, args...)))
}

// Warnf prints a warning message in yellow
func (p *Printer) Warnf(format string, args ...any) {
	p.write(p.colorize(ColorYellow, Dot+" "+fmt.Sprintf(format, args...)))
}

// Printf prints a plain message without colors
func (p *Printer) Printf(format string, args ...any) {
	p.write(fmt.Sprintf(format, args...))
}

// Section prints a section header (bold + underlined)
func (p *Printer) Section(title string) {
	if !p.color {
		p.write(title)
		return
	}
	p.write(ColorBold + ColorUnderline + title + ColorReset)
}

// Bold makes text bold
func (p *Printer) Bold(text string) string {
	return p.colorize(ColorBold, text)
}

// Muted renders text in gray.
func (p *Printer) Muted(text string) string {
	return p.colorize(ColorGray, text)
}

// CheckItem prints an indented item with a green check.
func (p *Printer) CheckItem(label, detail string) {
	p.item(ColorGreen, Check, label, detail)
}

// WarnItem prints an indented item with a yellow dot.
func (p *Printer) WarnItem(label, detail string) {
	p.item(ColorYellow, Dot, label, detail)
}

// FailItem prints an indented item with a red cross.
func (p *Printer) FailItem(label, detail string) {
	p.item(ColorRed, Cross, label, detail)
}

func (p *Printer) item(color, symbol, label, detail string) {
	line := "  " + p.colorize(color, symbol) + " " + label
	if detail != "" {
		line += ": " + detail
	}
	p.write(line)
}

// Table prints rows aligned in columns under a header row.
func (p *Printer) Table(header []string, rows [][]string) {
	tw := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

var resultMessages = map[reservation.Result]string{
	reservation.ReserveSucceeded:     "Reserved",
	reservation.ReserveWaitlisted:    "Added to the waitlist",
	reservation.ReserveDeniedCutoff:  "Too close to the start time to reserve",
	reservation.ReserveDeniedClash:   "Overlaps another reservation",
	reservation.ReserveDeniedUnknown: "Could not reserve",
	reservation.SwapSucceeded:        "Swapped",
	reservation.SwapWaitlisted:       "Swapped onto the waitlist",
	reservation.SwapDeniedCutoff:     "Too close to the start time to swap",
	reservation.SwapDeniedClash:      "The new session overlaps another reservation",
	reservation.SwapDeniedUnknown:    "Could not swap",
	reservation.CancelSucceeded:      "Reservation cancelled",
	reservation.CancelDeniedCutoff:   "Too close to the start time to cancel",
	reservation.CancelDeniedUnknown:  "Could not cancel",
}

// Result prints a reservation outcome: green on success, yellow when
// waitlisted and red when denied.
func (p *Printer) Result(r reservation.Result, sessionID string) {
	msg, ok := resultMessages[r]
	if !ok {
		msg = r.String()
	}
	msg += ": " + sessionID

	switch {
	case !ok || r.Denied():
		p.Errorf("%s", msg)
	case r == reservation.ReserveWaitlisted || r == reservation.SwapWaitlisted:
		p.Warnf("%s", msg)
	default:
		p.Successf("%s", msg)
	}
}

// colorize applies ANSI color codes to text
func (p *Printer) colorize(color, text string) string {
	if !p.color {
		return text
	}
	return color + text + ColorReset
}

func (p *Printer) write(line string) {
	_, _ = p.writer.Write([]byte(line + "\n"))
}
