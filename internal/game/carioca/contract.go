package carioca

import (
	"fmt"
	"strings"
)

// Contract is what a player must lay down to complete a round.
type Contract struct {
	Sets      int `json:"sets"`
	Runs      int `json:"runs"`
	RunLength int `json:"runLength"`
}

const (
	// SetLength is the exact size of a set in the initial lay-down.
	SetLength = 3
	// RunLength is the exact size of a run in the initial lay-down and the
	// minimum size of any run afterwards.
	RunLength = 4
)

var contracts = [...]Contract{
	{Sets: 2, RunLength: RunLength},
	{Sets: 1, Runs: 1, RunLength: RunLength},
	{Runs: 2, RunLength: RunLength},
	{Sets: 3, RunLength: RunLength},
	{Sets: 2, Runs: 1, RunLength: RunLength},
	{Sets: 1, Runs: 2, RunLength: RunLength},
	{Runs: 3, RunLength: RunLength},
}

// Contracts returns the seven rounds in play order.
func Contracts() []Contract {
	out := make([]Contract, len(contracts))
	copy(out, contracts[:])
	return out
}

// Cards is the number of cards needed to fulfil the contract.
func (c Contract) Cards() int {
	return c.Sets*SetLength + c.Runs*c.RunLength
}

func (c Contract) String() string {
	var parts []string
	if c.Sets > 0 {
		parts = append(parts, plural(c.Sets, "SET"))
	}
	if c.Runs > 0 {
		parts = append(parts, fmt.Sprintf("%s of %d", plural(c.Runs, "RUN"), c.RunLength))
	}
	return strings.Join(parts, " + ")
}

func plural(n int, what string) string {
	if n == 1 {
		return "1 " + what
	}
	return fmt.Sprintf("%d %ss", n, what)
}
