package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// ═══════════════════════════════════════════════════════════
// CLI 출력 포맷
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// out 커맨드 출력 대상 (테스트에서 교체)
var out io.Writer = os.Stdout

const lineWidth = 59

// PrintSeparator prints a single-line separator
func PrintSeparator() {
	fmt.Fprintln(out, strings.Repeat("─", lineWidth))
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Fprintln(out, strings.Repeat("═", lineWidth))
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Fprintf(out, "✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(out, "❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Fprintf(out, "ℹ️  %s\n", message)
}

// kv 한 줄 key : value
type kv struct {
	key   string
	value string
}

// printKeyValues prints pairs with keys padded to the longest key
func printKeyValues(pairs ...kv) {
	width := 0
	for _, p := range pairs {
		width = max(width, utf8.RuneCountInString(p.key))
	}
	for _, p := range pairs {
		fmt.Fprintf(out, "   %s : %s\n", pad(p.key, width), p.value)
	}
}

// table 컬럼 폭을 내용에 맞추는 텍스트 테이블
type table struct {
	header []string
	rows   [][]string
}

func newTable(header ...string) *table {
	return &table{header: header}
}

// add appends a row; missing cells print empty
func (t *table) add(values ...string) {
	t.rows = append(t.rows, values)
}

func (t *table) print() {
	widths := make([]int, len(t.header))
	for i, h := range t.header {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.rows {
		for i := 0; i < len(widths) && i < len(row); i++ {
			widths[i] = max(widths[i], utf8.RuneCountInString(row[i]))
		}
	}

	total := 2 * (len(widths) - 1)
	for _, w := range widths {
		total += w
	}

	t.printRow(t.header, widths)
	fmt.Fprintln(out, strings.Repeat("─", total))
	for _, row := range t.rows {
		t.printRow(row, widths)
	}
}

func (t *table) printRow(values []string, widths []int) {
	cells := make([]string, len(widths))
	for i := range widths {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		cells[i] = pad(v, widths[i])
	}
	fmt.Fprintln(out, strings.TrimRight(strings.Join(cells, "  "), " "))
}

func pad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
