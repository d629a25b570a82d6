// Copyright 2025 The ProtonOS Authors.
//
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

// Package hostarch contains properties of the machine architecture: page
// size, virtual address widths, and the types used to describe user
// addresses and access permissions.
package hostarch

// PageSize is the size in bytes of the machine's base page.
const PageSize = 1 << PageShift

// PageShift is log2(PageSize).
const PageShift = 12

// PageMask masks the offset-in-page bits of an address.
const PageMask = PageSize - 1

// PageRoundDown returns an aligned address.
func PageRoundDown(x uintptr) uintptr {
	return x &^ PageMask
}

// PageRoundUp returns an aligned address and whether rounding overflowed.
func PageRoundUp(x uintptr) (uintptr, bool) {
	s := x + PageMask
	if s < x {
		return 0, false
	}
	return PageRoundDown(s), true
}

// IsPageAligned returns true if x is a multiple of PageSize.
func IsPageAligned(x uintptr) bool {
	return x&PageMask == 0
}
