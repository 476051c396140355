package emu

import "strings"

// quote single-quotes s for sh
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func mkdirLine(dirs ...string) string {
	var b strings.Builder
	b.WriteString("mkdir -p")
	for _, d := range dirs {
		b.WriteString(" ")
		b.WriteString(quote(d))
	}
	return b.String()
}
