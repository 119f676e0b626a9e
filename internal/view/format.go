// Package view turns market reads into what the user sees: labels, enabled
// actions and short formatted values.
package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// TimeRemaining formats the time left until end: "Ended", "Xd Yh",
// "Xh Ym" or "Xm".
func TimeRemaining(end, now time.Time) string {
	total := int64(end.Sub(now) / time.Second)
	if total <= 0 {
		return "Ended"
	}
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// ShortAddress renders 0x1234...abcd.
func ShortAddress(addr common.Address) string {
	h := addr.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}

// SameAddress compares addresses case-insensitively as hex strings.
func SameAddress(a, b common.Address) bool {
	return strings.EqualFold(a.Hex(), b.Hex())
}

// OutcomeLabel renders a resolved outcome.
func OutcomeLabel(outcome bool) string {
	if outcome {
		return "YES"
	}
	return "NO"
}

// VoteLabel renders a vote.
func VoteLabel(v domain.Vote) string {
	return v.String()
}

// Timestamp renders an on-chain time for display.
func Timestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
