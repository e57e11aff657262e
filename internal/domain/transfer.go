package domain

import (
	"fmt"
	"strings"
)

const (
	transferToPrefix   = "Transfer to "
	transferFromPrefix = "Transfer from "
)

// TransferDescription renders the description of a leg. The outflow leg
// names the destination account, the inflow leg names the source.
func TransferDescription(dir Direction, counterAccount, text string) string {
	if dir == DirectionOut {
		return fmt.Sprintf("%s%s: %s", transferToPrefix, counterAccount, text)
	}
	return fmt.Sprintf("%s%s: %s", transferFromPrefix, counterAccount, text)
}

// TransferMarker is the parsed form of a leg description.
type TransferMarker struct {
	Direction      Direction
	CounterAccount string
	Text           string
}

// ParseTransferDescription recovers the marker from a leg description.
// The first ": " after the prefix ends the account name.
func ParseTransferDescription(desc string) (TransferMarker, bool) {
	var m TransferMarker
	var rest string
	switch {
	case strings.HasPrefix(desc, transferToPrefix):
		m.Direction = DirectionOut
		rest = desc[len(transferToPrefix):]
	case strings.HasPrefix(desc, transferFromPrefix):
		m.Direction = DirectionIn
		rest = desc[len(transferFromPrefix):]
	default:
		return m, false
	}
	i := strings.Index(rest, ": ")
	if i <= 0 {
		return m, false
	}
	m.CounterAccount = rest[:i]
	m.Text = rest[i+2:]
	return m, true
}
