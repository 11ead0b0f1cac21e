// SPDX-License-Identifier: MPL-2.0

package pkgfile

import "strings"

var headerDelimiters = []string{"'''", `"""`}

// splitHeader separates the quoted ini header from the shell body.
// bodyLine is the 1-based line on which the body starts.
func splitHeader(text string) (header, body string, bodyLine int, found, closed bool) {
	lines := strings.SplitAfter(text, "\n")
	var (
		delim string
		hdr   []string
	)
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if delim == "" {
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			for _, d := range headerDelimiters {
				if strings.HasPrefix(line, d) {
					delim = d
				}
			}
			if delim == "" {
				return "", "", 0, false, false
			}
			rest := line[len(delim):]
			if strings.HasSuffix(rest, delim) {
				hdr = append(hdr, strings.TrimSuffix(rest, delim))
				return strings.Join(hdr, "\n"), strings.Join(lines[i+1:], ""), i + 2, true, true
			}
			hdr = append(hdr, rest)
			continue
		}
		if strings.HasSuffix(line, delim) {
			hdr = append(hdr, strings.TrimSuffix(line, delim))
			return strings.Join(hdr, "\n"), strings.Join(lines[i+1:], ""), i + 2, true, true
		}
		hdr = append(hdr, line)
	}
	return strings.Join(hdr, "\n"), "", 0, delim != "", false
}
