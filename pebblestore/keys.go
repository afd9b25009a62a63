package pebblestore

import (
	"bytes"
	"encoding/binary"
)

// Key space. Numeric portions are 8-byte big-endian so byte order matches
// numeric order; record ids are terminated with a NUL inside doc keys,
// which is why ids may not contain one.
const (
	prefixDoc    = "/doc/"    // /doc/{id}\x00{rev} -> leaf
	prefixExp    = "/exp/"    // /exp/{8 bytes key}{id} -> expiry metadata
	prefixExpPtr = "/expptr/" // /expptr/{id} -> 8 bytes current index key

	keyDefaultTTL   = "/meta/default_ttl"
	keyIndexVersion = "/meta/index_version"
)

func docKey(id, rev string) []byte {
	k := make([]byte, 0, len(prefixDoc)+len(id)+1+len(rev))
	k = append(k, prefixDoc...)
	k = append(k, id...)
	k = append(k, 0)
	k = append(k, rev...)
	return k
}

func docPrefix(id string) []byte {
	k := make([]byte, 0, len(prefixDoc)+len(id)+1)
	k = append(k, prefixDoc...)
	k = append(k, id...)
	k = append(k, 0)
	return k
}

// docKeyID extracts the record id from a /doc/ key.
func docKeyID(k []byte) (string, bool) {
	rest := k[len(prefixDoc):]
	i := bytes.IndexByte(rest, 0)
	if i < 0 {
		return "", false
	}
	return string(rest[:i]), true
}

func expKey(key int64, id string) []byte {
	k := make([]byte, 0, len(prefixExp)+8+len(id))
	k = append(k, prefixExp...)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(key))
	k = append(k, buf[:]...)
	k = append(k, id...)
	return k
}

// expKeyStart is the smallest index key at or after startKey, used to seed
// cursor scans.
func expKeyStart(startKey int64) []byte {
	return expKey(startKey, "")
}

func splitExpKey(k []byte) (key int64, id string, ok bool) {
	rest := k[len(prefixExp):]
	if len(rest) < 8 {
		return 0, "", false
	}
	return int64(binary.BigEndian.Uint64(rest[:8])), string(rest[8:]), true
}

func expPtrKey(id string) []byte {
	return append([]byte(prefixExpPtr), id...)
}

// prefixUpperBound returns the exclusive upper bound covering every key
// that starts with prefix.
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
