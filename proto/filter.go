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

package proto

// Filter is a minimal canonical predicate tree, deep enough to drive
// getShardIdsForQuery's documented steps. It is not a general query
// language parser (that is out of scope, spec.md §1) — it is the shape a
// parser upstream of the routing index would already have produced.
type Filter struct {
	// Leaf predicates, keyed by field name. A Filter with len(Eq)==0 and
	// len(Range)==0 and no Or children and neither GeoNear nor FullText
	// set matches everything (targets all shards).
	Eq    map[string]interface{}
	Range map[string]FieldRange

	// Or holds sort-merge / OR top-node children; their per-field bounds
	// are unioned rather than intersected.
	Or []Filter

	GeoNear  bool
	FullText bool
}

// FieldRange is an inclusive/exclusive bound pair on one field, mirroring
// the {$gte/$gt, $lt/$lte} shape getIndexBoundsForQuery collapses into.
type FieldRange struct {
	Min          interface{}
	Max          interface{}
	MinInclusive bool
	MaxInclusive bool
}

func (f Filter) IsMatchAll() bool {
	return len(f.Eq) == 0 && len(f.Range) == 0 && len(f.Or) == 0 && !f.GeoNear && !f.FullText
}
