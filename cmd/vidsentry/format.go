package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var classTitler = cases.Title(language.English)

// displayClass turns a detector class name such as "traffic light" into
// "Traffic Light" for human-facing output.
func displayClass(class string) string {
	return classTitler.String(strings.TrimSpace(class))
}

func classList(classes []string) string {
	if len(classes) == 0 {
		return "none"
	}
	out := make([]string, len(classes))
	for i, class := range classes {
		out[i] = displayClass(class)
	}
	return strings.Join(out, ", ")
}

func maxCountList(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	classes := make([]string, 0, len(counts))
	for class := range counts {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	parts := make([]string, len(classes))
	for i, class := range classes {
		parts[i] = fmt.Sprintf("%s=%d", class, counts[class])
	}
	return strings.Join(parts, " ")
}

func formatTimestamp(value string) string {
	if value == "" {
		return "-"
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
