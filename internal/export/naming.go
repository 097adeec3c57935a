package export

import (
	"fmt"
	"strings"
)

// EntityFilename derives the shard file prefix from an entity name: the
// token at index token after splitting on sep, or the whole name when
// there are not enough tokens.
//
//	EntityFilename("acme_prod_KR01_2024", "_", 2) == "KR01"
//	EntityFilename("acme", "_", 2) == "acme"
func EntityFilename(name, sep string, token int) string {
	if sep == "" || token < 0 {
		return name
	}
	parts := strings.Split(name, sep)
	if token >= len(parts) || parts[token] == "" {
		return name
	}
	return parts[token]
}

// JournalShardName returns the journal shard name. page 0 means the export
// fit in a single page and gets no numeric suffix.
func JournalShardName(filename string, page int) string {
	if page == 0 {
		return filename + "_GL.csv"
	}
	return fmt.Sprintf("%s_GL_%d.csv", filename, page)
}

// BalanceShardName returns the balance shard name.
func BalanceShardName(filename string) string {
	return filename + "_TB.csv"
}
