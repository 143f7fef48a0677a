package observability

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/rahul/webpilot/internal/schemas"
	"golang.org/x/term"
)

var (
	cyan   = color.New(color.FgHiCyan).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

const banner = `
 _      __    __   ___  _ __     __
| | /| / /__ / /  / _ \(_) /__  / /_
| |/ |/ / -_) _ \/ ___/ / / _ \/ __/
|__/|__/\__/_.__/_/  /_/_/\___/\__/

      >> BROWSER TASK EXECUTION <<
`

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func termWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			return width
		}
	}
	return 80
}

func PrintBanner(w io.Writer) {
	width := termWidth(w)
	for _, l := range strings.Split(banner, "\n") {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", padding), cyan(l))
	}
}

// PrintPlan lists the subtasks before execution.
func PrintPlan(w io.Writer, plan schemas.Plan) {
	fmt.Fprintf(w, "\n%s %s\n", bold("🎯 Goal:"), plan.Goal)
	for _, a := range plan.Assumptions {
		fmt.Fprintf(w, "   %s %s\n", gray("assume"), a)
	}
	fmt.Fprintf(w, "%s\n", bold("📋 Plan:"))
	for _, st := range plan.Subtasks {
		fmt.Fprintf(w, "   %d. [%s] %s\n", st.ID, yellow(st.Capability), st.Description)
	}
	if plan.Dependencies != "" {
		fmt.Fprintf(w, "   %s %s\n", gray("order"), plan.Dependencies)
	}
	fmt.Fprintln(w)
}

// PrintStep renders one subtask outcome with its details.
func PrintStep(w io.Writer, st schemas.Subtask, out schemas.ActionOutcome) {
	mark := green("✓")
	if !out.Succeeded {
		mark = red("✗")
	}
	fmt.Fprintf(w, "%s %d. %s %s\n", mark, st.ID, st.Description, gray("("+out.ActionKind+")"))
	if out.Failure != nil {
		fmt.Fprintf(w, "   %s %s\n", red(string(out.Failure.Kind)), out.Failure.Message)
	}

	keys := make([]string, 0, len(out.Details))
	for k := range out.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fmt.Sprint(out.Details[k])
		if r := []rune(v); len(r) > 120 {
			v = string(r[:117]) + "..."
		}
		fmt.Fprintf(w, "   %s %s\n", gray(k+":"), v)
	}
}

// PrintSummary prints the success tally of a run.
func PrintSummary(w io.Writer, outcomes []schemas.ActionOutcome) {
	succeeded, total := schemas.Tally(outcomes)
	paint := green
	if succeeded < total {
		paint = yellow
	}
	if succeeded == 0 && total > 0 {
		paint = red
	}
	fmt.Fprintf(w, "\n%s %s\n", bold("📊 Result:"), paint(fmt.Sprintf("%d/%d subtasks succeeded", succeeded, total)))
}
