package pipeline

import (
	"encoding/hex"
	"os"

	"github.com/zeebo/xxh3"
)

// fileHash returns the xxh3 content hash of a file, hex encoded.
func fileHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := xxh3.Hash128(data).Bytes()
	return hex.EncodeToString(sum[:]), nil
}

// stripBOM removes a UTF-8 byte order mark if present.
func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// safeRowToLine converts a zero-based tree-sitter row to a one-based line
// number, guarding against overflow on pathological inputs.
func safeRowToLine(row uint) int {
	line := int(row)
	if line < 0 {
		return 0
	}
	return line + 1
}
