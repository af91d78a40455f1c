package registry

import "encoding/binary"

// Key layout:
//
//	reg/feat/{id}               -> Feature JSON
//	reg/seq/{seq8}              -> feature id (registration order index)
//	reg/stage/{stage}/{seq8}    -> feature id (per-stage, registration order)
//	reg/batch/{id}              -> Batch JSON
//	reg/meta                    -> lastSeq (8B BE)
const (
	prefixFeat  = "reg/feat/"
	prefixSeq   = "reg/seq/"
	prefixStage = "reg/stage/"
	prefixBatch = "reg/batch/"
	keyMeta     = "reg/meta"
)

func featKey(id string) []byte { return []byte(prefixFeat + id) }

func seqPrefix() []byte { return []byte(prefixSeq) }

func seqKey(seq uint64) []byte {
	key := make([]byte, len(prefixSeq)+8)
	copy(key, prefixSeq)
	binary.BigEndian.PutUint64(key[len(prefixSeq):], seq)
	return key
}

func stagePrefix(stage Stage) []byte {
	return []byte(prefixStage + stage.String() + "/")
}

func stageKey(stage Stage, seq uint64) []byte {
	prefix := prefixStage + stage.String() + "/"
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], seq)
	return key
}

func batchKey(id string) []byte { return []byte(prefixBatch + id) }

func metaKey() []byte { return []byte(keyMeta) }
