package sync

import "fmt"

// BlockFinality selects which chain head the syncer trusts.
type BlockFinality string

const (
	// FinalityFinalized uses the finalized block tag (highest level of finality)
	FinalityFinalized BlockFinality = "finalized"

	// FinalitySafe uses the safe block tag (medium level of finality)
	FinalitySafe BlockFinality = "safe"

	// FinalityLatest uses the latest block tag, optionally lagged by a fixed
	// number of blocks (no finality guarantees)
	FinalityLatest BlockFinality = "latest"
)

// String returns the string representation of BlockFinality.
func (f BlockFinality) String() string {
	return string(f)
}

// ParseBlockFinality parses a string into a BlockFinality type.
func ParseBlockFinality(s string) (BlockFinality, error) {
	switch f := BlockFinality(s); f {
	case FinalityFinalized, FinalitySafe, FinalityLatest:
		return f, nil
	default:
		return "", fmt.Errorf("invalid block finality: %s (must be one of: finalized, safe, latest)", s)
	}
}

// Mode represents the operating mode of the syncer.
type Mode string

const (
	// ModeBackfill fetches historical blocks in chunks
	ModeBackfill Mode = "backfill"

	// ModeLive tails new blocks as they pass the finality threshold
	ModeLive Mode = "live"
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}
