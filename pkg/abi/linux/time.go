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

package linux

// Clock identifiers for clock_gettime(2).
const (
	CLOCK_REALTIME  = 0
	CLOCK_MONOTONIC = 1
)

// Timespec represents struct timespec in <time.h>.
type Timespec struct {
	Sec  int64
	Nsec int64
}

// SizeOfTimespec is the size of the wire form of Timespec.
const SizeOfTimespec = 16

// NsecToTimespec translates nanoseconds to Timespec.
func NsecToTimespec(nsec int64) Timespec {
	return Timespec{
		Sec:  nsec / 1e9,
		Nsec: nsec % 1e9,
	}
}

// Timeval represents struct timeval in <sys/time.h>.
type Timeval struct {
	Sec  int64
	Usec int64
}

// SizeOfTimeval is the size of the wire form of Timeval.
const SizeOfTimeval = 16

// NsecToTimeval translates nanoseconds to Timeval.
func NsecToTimeval(nsec int64) Timeval {
	nsec += 999 // round up to microsecond
	return Timeval{
		Sec:  nsec / 1e9,
		Usec: (nsec % 1e9) / 1e3,
	}
}
