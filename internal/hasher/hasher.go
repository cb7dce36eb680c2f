package hasher

import (
	"encoding/binary"
	"encoding/hex"
	"io"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ShortLen is the number of hex chars of a content hash embedded in file
// names.
const ShortLen = 8

// ContentHash computes the xxHash64 of data as hex, truncated to hexLen
// chars (0 = all 16).
func ContentHash(data []byte, hexLen int) string {
	return format(xxhash.Sum64(data), hexLen)
}

// ContentHashReader computes xxHash64 from a reader, streaming.
func ContentHashReader(r io.Reader, hexLen int) (string, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return format(h.Sum64(), hexLen), nil
}

// FileName builds a content-addressed name: <base>.<hash>.<ext>, where base
// is name without directory or extension.
func FileName(name, hash, ext string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "image"
	}
	if len(hash) > ShortLen {
		hash = hash[:ShortLen]
	}
	return base + "." + hash + "." + strings.TrimPrefix(ext, ".")
}

func format(sum uint64, hexLen int) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], sum)
	full := hex.EncodeToString(b[:])
	if hexLen > 0 && hexLen < len(full) {
		return full[:hexLen]
	}
	return full
}
