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

package errors

import "errors"

var (
	// ErrShardKeyNotFound: point targeting could not resolve to a single
	// chunk, either because collation disagreed with a collation-sensitive
	// key field or because the key does not satisfy the shard-key pattern.
	ErrShardKeyNotFound = errors.New("shard key not found")

	// ErrConflictingOperationInProgress: a chunk delta disagreed with the
	// routing table's current epoch, or the keyspace coverage invariant
	// was violated after a build.
	ErrConflictingOperationInProgress = errors.New("conflicting operation in progress")

	// ErrNamespaceNotFound: the catalogue reports the namespace is not
	// sharded.
	ErrNamespaceNotFound = errors.New("namespace not found")

	// ErrInvariantViolation: an update referenced a chunk range the
	// current TopIndex cannot locate. Fatal — the in-memory view is
	// unrecoverable and the caller should terminate the process rather
	// than risk silent misrouting.
	ErrInvariantViolation = errors.New("routing invariant violation")

	// ErrCommandNotFound / ErrInvalidArgument: admin-command surface
	// errors, surfaced to the caller as-is.
	ErrCommandNotFound = errors.New("command not found")
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrGeoNearNotSupported: getShardIdsForQuery refuses filters that
	// contain a geoNear leaf.
	ErrGeoNearNotSupported = errors.New("geoNear queries cannot be routed")

	// ErrLimitExceeded: a Limiter admission request was refused.
	ErrLimitExceeded = errors.New("limit exceeded")
)
