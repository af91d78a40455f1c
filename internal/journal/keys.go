package journal

import "encoding/binary"

// Key layout:
//
//	journal/ev/{seq8}  -> Event JSON
//	journal/meta       -> lastSeq (8B BE)
const (
	prefixEntry = "journal/ev/"
	keyMeta     = "journal/meta"
)

func entryPrefix() []byte { return []byte(prefixEntry) }

func entryKey(seq uint64) []byte {
	key := make([]byte, len(prefixEntry)+8)
	copy(key, prefixEntry)
	binary.BigEndian.PutUint64(key[len(prefixEntry):], seq)
	return key
}

func metaKey() []byte { return []byte(keyMeta) }
