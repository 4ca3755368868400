package transport

import (
	"fmt"
	"time"
)

// eolWarnHorizon is 90-day soft-warning window.
const eolWarnHorizon = 90 * 24 * time.Hour

// EOLWarning implements /'s EOL policy: a strong warning
// once EOL has passed, a softer humanized-time-until warning within 90
// days of it, and silence otherwise. versionLabel is used verbatim in
// the message (e.g. "13.2-RELEASE").
func EOLWarning(now, eol time.Time, versionLabel string) (string, bool) {
	if !now.Before(eol) {
		return fmt.Sprintf(
			"WARNING: %s HAS PASSED ITS END-OF-LIFE DATE.\n"+
				"Any security issues discovered after %s\n"+
				"will not have been corrected.",
			versionLabel, eol.Format(time.RFC1123)), true
	}

	if now.Add(eolWarnHorizon).Before(eol) {
		return "", false
	}

	until := eol.Sub(now)
	return fmt.Sprintf(
		"WARNING: %s is approaching its end-of-life date.\n"+
			"It is strongly recommended that you upgrade to a newer release before\n"+
			"%s  (%s).",
		versionLabel, eol.Format(time.RFC1123), humanizeUntil(until)), true
}

// humanizeUntil mirrors f-u.sh's interval-until formatting: months when
// over 31 days out, weeks when over 7, otherwise days, always pluralized
// correctly — freebsd-update's eol_warning_be comment notes it is
// "fak[ing] up a variant of f-u.sh's 'interval until'".
func humanizeUntil(d time.Duration) string {
	days := int64(d / (24 * time.Hour))
	switch {
	case days > 31:
		return pluralize(days/31, "month")
	case days > 7:
		return pluralize(days/7, "week")
	default:
		return pluralize(days, "day")
	}
}

func pluralize(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
