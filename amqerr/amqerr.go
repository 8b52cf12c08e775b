// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package amqerr carries the error-kind taxonomy shared by every filter
// family in this module. Constructors and mutators wrap one of these
// sentinels with github.com/pkg/errors so that callers can test with
// errors.Is while still getting a readable chain via Error().
package amqerr

import "github.com/pkg/errors"

var (
	// ErrConstructionFailed means peeling or eviction exceeded its retry
	// budget. The input is not necessarily malformed; a fresh seed may
	// succeed where this attempt did not.
	ErrConstructionFailed = errors.New("amqfilter: construction failed")

	// ErrInputLikelyBroken means a position's counter exceeded the
	// abuse threshold during peeling, or a hash repeatedly collided.
	// It is a strong signal of duplicate keys or a pathological hash.
	ErrInputLikelyBroken = errors.New("amqfilter: input likely contains duplicates or breaks the hash")

	// ErrCapacityExhausted means a cuckoo insertion could not find a
	// vacancy within the kick budget.
	ErrCapacityExhausted = errors.New("amqfilter: capacity exhausted")

	// ErrUnsupportedOperation means Add or Remove was invoked on a
	// variant that does not implement it.
	ErrUnsupportedOperation = errors.New("amqfilter: operation not supported by this filter variant")

	// ErrMalformedInput means a serialized form failed a format or
	// length check, or a parameter (e.g. segment length) violates an
	// invariant the format requires.
	ErrMalformedInput = errors.New("amqfilter: malformed input")

	// ErrInvalidArgument means an empty key array was given where the
	// variant requires at least one key, or a size argument was
	// negative or zero.
	ErrInvalidArgument = errors.New("amqfilter: invalid argument")
)

// Is reports whether err is, or wraps, kind. It is a thin rename of
// errors.Is kept local so callers importing only amqerr don't also need
// github.com/pkg/errors.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}

// Wrapf wraps kind with a formatted message, preserving Is(err, kind).
func Wrapf(kind error, format string, args ...interface{}) error {
	return errors.Wrapf(kind, format, args...)
}
