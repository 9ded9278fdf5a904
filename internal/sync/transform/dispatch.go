package transform

import (
	"regexp"
	"strconv"
	"strings"
)

// Dispatch-time tokens arrive shaped like "PT24H", "P3D", or a mix of both.
// The combined pattern accepts an optional hour part followed by an optional
// day part; the bare pattern catches hour-only tokens the combined form
// missed. Anything matching neither yields the 1-day default.
var (
	dispatchCombinedRe = regexp.MustCompile(`^(?:PT(\d+)H)?(?:P?(\d+)D?)?$`)
	dispatchHoursRe    = regexp.MustCompile(`PT(\d+)H`)
)

// DispatchDays parses a marketplace handling-time token into whole days.
// Hours are converted with ceiling division (PT25H is 2 days) and the result
// is clamped to a minimum of 1, since the destination rejects zero dispatch
// time.
func DispatchDays(token string) int {
	s := strings.ToUpper(strings.TrimSpace(token))
	if s == "" {
		return 1
	}
	s = strings.ReplaceAll(s, " ", "")

	days := 0
	if m := dispatchCombinedRe.FindStringSubmatch(s); m != nil && (m[1] != "" || m[2] != "") {
		if m[1] != "" {
			hours, _ := strconv.Atoi(m[1])
			days += (hours + 23) / 24
		}
		if m[2] != "" {
			d, _ := strconv.Atoi(m[2])
			days += d
		}
	} else if m := dispatchHoursRe.FindStringSubmatch(s); m != nil {
		hours, _ := strconv.Atoi(m[1])
		days = (hours + 23) / 24
	}

	if days < 1 {
		return 1
	}
	return days
}
