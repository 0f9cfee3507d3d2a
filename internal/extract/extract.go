// Package extract pulls the originating sender IP out of raw message
// headers. Each relay prepends its own Received line, so the earliest hop
// (closest to the true sender) is the last bracketed address seen when
// scanning the header block top to bottom.
package extract

import (
	"regexp"
	"strings"
)

var (
	receivedLine  = regexp.MustCompile(`(?i)^received:\s`)
	bracketedIPv4 = regexp.MustCompile(`\[(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\]`)
)

// SenderIP returns the last bracketed dotted-quad found on the Received
// lines of raw, e.g. "Received: from weforum.pro (host.example [185.174.29.12])".
// A single line may carry several bracketed addresses; only the overall
// last one matters. Returns ok=false when no Received line carries one.
func SenderIP(raw string) (ip string, ok bool) {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if !receivedLine.MatchString(line) {
			continue
		}
		for _, m := range bracketedIPv4.FindAllStringSubmatch(line, -1) {
			ip = m[1]
		}
	}
	return ip, ip != ""
}
