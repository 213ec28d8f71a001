package catalog

import "encoding/binary"

// Key-family prefix bytes, spec.md §6 "Primary-key byte layout".
const (
	keyFamilyPrimary   byte = 0x01
	keyFamilySequence  byte = 0x02
	keyFamilySecondary byte = 0x03
)

// tableID is the small per-entity-kind constant spec.md §4.6 calls
// table_id. It is distinct from EntityID (a row id within that table).
type tableID uint32

const (
	tablePrimarySchema tableID = iota
	tablePrimaryTable
	tablePrimaryColumn
	tablePrimaryIndex
	tablePrimaryPartition
	tablePrimaryChunk
	tablePrimaryWAL
	tablePrimaryJob
	tablePrimaryMultiPartition
)

func tableIDFor(k Kind) tableID {
	switch k {
	case KindSchema:
		return tablePrimarySchema
	case KindTable:
		return tablePrimaryTable
	case KindColumn:
		return tablePrimaryColumn
	case KindIndex:
		return tablePrimaryIndex
	case KindPartition:
		return tablePrimaryPartition
	case KindChunk:
		return tablePrimaryChunk
	case KindWAL:
		return tablePrimaryWAL
	case KindJob:
		return tablePrimaryJob
	case KindMultiPartition:
		return tablePrimaryMultiPartition
	default:
		panic("catalog: unknown entity kind")
	}
}

// primaryKey encodes spec.md §6: 0x01 || u32_be(table_id) || u64_be(0)
// || u64_be(row_id). The zero padding keeps every primary key of a kind
// in a contiguous, fixed-length-13 prefix (table_id alone), matching the
// teacher's fixed-width-component key style in key_encoder_binary.go.
func primaryKey(k Kind, row EntityID) []byte {
	buf := make([]byte, 1+4+8+8)
	buf[0] = keyFamilyPrimary
	binary.BigEndian.PutUint32(buf[1:5], uint32(tableIDFor(k)))
	binary.BigEndian.PutUint64(buf[5:13], 0)
	binary.BigEndian.PutUint64(buf[13:21], uint64(row))
	return buf
}

// primaryPrefix is the fixed 13-byte prefix shared by every primary key
// of kind k, usable as a scan range bound.
func primaryPrefix(k Kind) []byte {
	buf := make([]byte, 1+4+8)
	buf[0] = keyFamilyPrimary
	binary.BigEndian.PutUint32(buf[1:5], uint32(tableIDFor(k)))
	binary.BigEndian.PutUint64(buf[5:13], 0)
	return buf
}

// sequenceKey encodes spec.md §6: 0x02 || u32_be(table_id).
func sequenceKey(k Kind) []byte {
	buf := make([]byte, 1+4)
	buf[0] = keyFamilySequence
	binary.BigEndian.PutUint32(buf[1:5], uint32(tableIDFor(k)))
	return buf
}

// secondaryKey encodes the catalog's secondary-index key: 0x03 ||
// u32_be(index_id) || u64_be(hash(key_bytes)) || u64_be(row_id). The
// value stored at this key is key_bytes itself, so a lookup that scans
// the hash prefix can confirm each candidate by comparing key_bytes and
// reject hash collisions, per spec.md §4.6. This resolves §4.6's
// functional description ("(index_id, hash(key_bytes), row_id) →
// key_bytes") against §6's literal byte layout, which elides the hash
// step; embedding the raw variable-length key_bytes directly in the key
// would defeat the fixed-width hash-prefix lookup §4.6 describes in the
// same breath, so the hashed form is the one actually implemented.
func secondaryKey(indexID uint32, hash uint64, row EntityID) []byte {
	buf := make([]byte, 1+4+8+8)
	buf[0] = keyFamilySecondary
	binary.BigEndian.PutUint32(buf[1:5], indexID)
	binary.BigEndian.PutUint64(buf[5:13], hash)
	binary.BigEndian.PutUint64(buf[13:21], uint64(row))
	return buf
}

// secondaryHashPrefix encodes the 0x03 || u32_be(index_id) ||
// u64_be(hash(key_bytes)) portion used to scan for all rows matching a
// (possibly colliding) secondary key, before confirming by comparing
// the full key_bytes stored as the value.
func secondaryHashPrefix(indexID uint32, hash uint64) []byte {
	buf := make([]byte, 1+4+8)
	buf[0] = keyFamilySecondary
	binary.BigEndian.PutUint32(buf[1:5], indexID)
	binary.BigEndian.PutUint64(buf[5:13], hash)
	return buf
}
