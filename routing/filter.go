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

package routing

import (
	"strings"

	"github.com/cubefs/routingindex/proto"
)

// rangeBound is one [min, max] shard-key range derived from a filter, in
// the same positional shape as a Chunk's Min/Max.
type rangeBound struct {
	min proto.ShardKeyDoc
	max proto.ShardKeyDoc
}

// extractEqualityDoc returns the full shard-key document implied by
// filter's equality leaves, only when every pattern field has one.
func extractEqualityDoc(filter proto.Filter, pattern proto.KeyPattern) (proto.ShardKeyDoc, bool) {
	if filter.Eq == nil {
		return nil, false
	}
	doc := make(proto.ShardKeyDoc, len(pattern))
	for i, f := range pattern {
		v, ok := filter.Eq[f.Field]
		if !ok {
			return nil, false
		}
		doc[i] = v
	}
	return doc, true
}

// deriveBounds transforms filter into shard-key ranges to probe via
// getShardIdsForRange. A full-text leaf anywhere in the tree forces the
// all-keys fallback, matching the source's "skip to an all-keys fallback"
// step.
func deriveBounds(filter proto.Filter, pattern proto.KeyPattern) ([]rangeBound, bool) {
	if hasFullText(filter) {
		return nil, true
	}

	bounds := fieldBounds(filter)
	if len(bounds) == 0 {
		return nil, true
	}

	minDoc := make(proto.ShardKeyDoc, len(pattern))
	maxDoc := make(proto.ShardKeyDoc, len(pattern))
	for i, f := range pattern {
		b, ok := bounds[f.Field]
		if !ok {
			minDoc[i] = proto.MinKey
			maxDoc[i] = proto.MaxKey
			continue
		}
		minDoc[i] = orSentinel(b.Min, proto.MinKey)
		maxDoc[i] = orSentinel(b.Max, proto.MaxKey)
	}
	return []rangeBound{{min: minDoc, max: maxDoc}}, false
}

func hasFullText(filter proto.Filter) bool {
	if filter.FullText {
		return true
	}
	for _, child := range filter.Or {
		if hasFullText(child) {
			return true
		}
	}
	return false
}

// fieldBounds walks filter's Eq/Range leaves and Or children, unioning the
// per-field bounds of Or children rather than intersecting them, per the
// source's sort-merge collapse step. An Or node bounds a field only when
// every child bounds it; a child without a bound on a field leaves that
// field unbounded.
func fieldBounds(filter proto.Filter) map[string]proto.FieldRange {
	out := make(map[string]proto.FieldRange, len(filter.Eq)+len(filter.Range))
	for field, v := range filter.Eq {
		out[field] = proto.FieldRange{Min: v, Max: v, MinInclusive: true, MaxInclusive: true}
	}
	for field, r := range filter.Range {
		out[field] = r
	}
	var orBounds map[string]proto.FieldRange
	for i, child := range filter.Or {
		cb := fieldBounds(child)
		if i == 0 {
			orBounds = cb
			continue
		}
		for field, r := range orBounds {
			c, ok := cb[field]
			if !ok {
				delete(orBounds, field)
				continue
			}
			orBounds[field] = unionFieldRange(r, c)
		}
	}
	for field, cb := range orBounds {
		existing, ok := out[field]
		if !ok {
			out[field] = cb
			continue
		}
		out[field] = unionFieldRange(existing, cb)
	}
	return out
}

// unionFieldRange widens a to cover b; a nil Min or Max on either side is
// unbounded and stays unbounded in the result.
func unionFieldRange(a, b proto.FieldRange) proto.FieldRange {
	out := a
	if a.Min == nil || b.Min == nil {
		out.Min, out.MinInclusive = nil, false
	} else if compareBound(b.Min, a.Min) < 0 {
		out.Min = b.Min
		out.MinInclusive = b.MinInclusive
	}
	if a.Max == nil || b.Max == nil {
		out.Max, out.MaxInclusive = nil, false
	} else if compareBound(b.Max, a.Max) > 0 {
		out.Max = b.Max
		out.MaxInclusive = b.MaxInclusive
	}
	return out
}

func orSentinel(v, sentinel interface{}) interface{} {
	if v == nil {
		return sentinel
	}
	return v
}

// compareBound orders two scalar bound values well enough to widen a
// union; values of incomparable type leave the existing bound untouched
// rather than guessing.
func compareBound(a, b interface{}) int {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs)
		}
	}
	return 0
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	default:
		return 0, false
	}
}
