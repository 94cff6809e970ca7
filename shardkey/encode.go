// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package shardkey turns a shard-key document into a byte string whose
// lexicographic order equals the document's order under a shard-key
// pattern, so the two ordered-map levels of the routing index can compare
// keys with a plain bytes.Compare instead of revisiting the original
// document on every comparison.
package shardkey

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/cubefs/routingindex/proto"
)

// type tags, ordered so that tag byte comparison alone reproduces BSON-ish
// cross-type ordering: MinKey sorts below everything, MaxKey above
// everything, and numbers sort below booleans sort below strings.
const (
	tagMinKey byte = 0x00
	tagNumber byte = 0x10
	tagBool   byte = 0x20
	tagString byte = 0x30
	tagHashed byte = 0x40
	tagMaxKey byte = 0xFF
)

// Encode produces the comparable byte string for one shard-key document
// under pattern. Trailing fields the document does not carry are treated
// as MinKey, so a shorter document still participates correctly in
// ordering — it simply sorts below any document with a value in that
// position.
func Encode(doc proto.ShardKeyDoc, pattern proto.KeyPattern) []byte {
	out := make([]byte, 0, 8*len(pattern))
	for i, field := range pattern {
		var v interface{} = proto.MinKey
		if i < len(doc) {
			v = doc[i]
		}
		out = appendValue(out, v, field.Direction)
	}
	return out
}

// Compare is lexicographic byte compare, exposed so callers never need to
// reach for bytes.Compare directly and can instead read the intent.
func Compare(a, b []byte) int { return bytes.Compare(a, b) }

// ContainsStringType reports whether encoding doc under pattern touches a
// collation-sensitive string field, used by findIntersectingChunk to
// decide whether a non-default collation makes routing unsafe.
func ContainsStringType(doc proto.ShardKeyDoc, pattern proto.KeyPattern) bool {
	for i, field := range pattern {
		if field.Direction == Hashed() {
			continue
		}
		if i >= len(doc) {
			continue
		}
		if _, ok := doc[i].(string); ok {
			return true
		}
	}
	return false
}

// Hashed is a tiny indirection so tests and callers outside this package
// don't need to import proto just to spell proto.Hashed.
func Hashed() proto.Direction { return proto.Hashed }

// appendValue never inverts the MinKey/MaxKey sentinel bytes, even under
// a Descending field: spec.md's Total Order Identity invariant requires
// MinKey to sort below every value and MaxKey above every value in every
// pattern direction, so the sentinels must stay fixed points of byte
// order regardless of dir.
func appendValue(out []byte, v interface{}, dir proto.Direction) []byte {
	if proto.IsMinKey(v) {
		return append(out, tagMinKey)
	}
	if proto.IsMaxKey(v) {
		return append(out, tagMaxKey)
	}

	var encoded []byte
	if dir == proto.Hashed {
		encoded = encodeHashed(v)
	} else {
		encoded = encodeScalar(v)
	}

	if dir == proto.Descending {
		encoded = invert(encoded)
	}
	return append(out, encoded...)
}

func encodeScalar(v interface{}) []byte {
	switch t := v.(type) {
	case bool:
		b := byte(0)
		if t {
			b = 1
		}
		return []byte{tagBool, b}
	case int:
		return encodeNumber(float64(t))
	case int32:
		return encodeNumber(float64(t))
	case int64:
		return encodeNumber(float64(t))
	case uint64:
		return encodeNumber(float64(t))
	case float32:
		return encodeNumber(float64(t))
	case float64:
		return encodeNumber(t)
	case string:
		buf := make([]byte, 0, len(t)+2)
		buf = append(buf, tagString)
		buf = append(buf, t...)
		buf = append(buf, 0x00)
		return buf
	case nil:
		return []byte{tagNumber}
	default:
		// Unknown scalar types route no differently than MinKey: they
		// sort consistently but never collide with a real bound.
		return []byte{tagMinKey}
	}
}

// encodeNumber is an order-preserving bijection from float64 to an 8-byte
// big-endian string: flip the sign bit for non-negative numbers, invert
// every bit for negative ones. Two float64 a < b always encode to
// encodeNumber(a) < encodeNumber(b) under byte compare.
func encodeNumber(f float64) []byte {
	bits := math.Float64bits(f)
	if bits>>63 == 1 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	buf := make([]byte, 9)
	buf[0] = tagNumber
	binary.BigEndian.PutUint64(buf[1:], bits)
	return buf
}

// encodeHashed canonicalizes v to bytes and hashes it with xxhash, so a
// hashed shard-key field scatters uniformly across the keyspace instead
// of preserving the original value's order.
func encodeHashed(v interface{}) []byte {
	canon := canonicalBytes(v)
	sum := xxhash.Sum64(canon)
	buf := make([]byte, 9)
	buf[0] = tagHashed
	binary.BigEndian.PutUint64(buf[1:], sum)
	return buf
}

func canonicalBytes(v interface{}) []byte {
	switch t := v.(type) {
	case string:
		return []byte(t)
	case []byte:
		return t
	default:
		return encodeScalar(v)
	}
}

func invert(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = ^c
	}
	return out
}
