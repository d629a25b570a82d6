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

package kernel

import (
	"sort"
	"sync"

	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/fs"
	"protonos.dev/protonos/pkg/limits"
)

// descriptor holds one slot of an FDTable.
type descriptor struct {
	file    *fs.File
	cloexec bool
}

// FDTable maps file descriptor numbers to open files. Each slot holds a
// reference on its file; the reference moves to the caller on Remove and
// is dropped on replacement and on destroy.
type FDTable struct {
	mu     sync.Mutex
	files  map[int32]descriptor
	limits *limits.LimitSet
}

// NewFDTable returns an empty table bounded by lim's NumberOfFiles.
func NewFDTable(lim *limits.LimitSet) *FDTable {
	return &FDTable{
		files:  make(map[int32]descriptor),
		limits: lim,
	}
}

// set installs file at fd, dropping any displaced file's reference.
//
// Preconditions: the caller has transferred a reference on file.
func (f *FDTable) set(fd int32, file *fs.File, cloexec bool) {
	f.mu.Lock()
	old, ok := f.files[fd]
	f.files[fd] = descriptor{file: file, cloexec: cloexec}
	f.mu.Unlock()
	if ok {
		old.file.DecRef()
	}
}

// maxFDs returns the descriptor limit as an int32.
func (f *FDTable) maxFDs() int32 {
	max := f.limits.GetCapped(limits.NumberOfFiles, maxTID*4)
	return int32(max)
}

// NewFDFrom allocates the lowest free descriptor greater than or equal to
// minfd, taking a new reference on file.
func (f *FDTable) NewFDFrom(minfd int32, file *fs.File, cloexec bool) (int32, error) {
	if minfd < 0 {
		return 0, linuxerr.EINVAL
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	max := f.maxFDs()
	for fd := minfd; fd < max; fd++ {
		if _, taken := f.files[fd]; !taken {
			file.IncRef()
			f.files[fd] = descriptor{file: file, cloexec: cloexec}
			return fd, nil
		}
	}
	return 0, linuxerr.EMFILE
}

// NewFDAt installs file at exactly fd, dup2-style, displacing any
// previous file.
func (f *FDTable) NewFDAt(fd int32, file *fs.File, cloexec bool) error {
	if fd < 0 || fd >= f.maxFDs() {
		return linuxerr.EBADF
	}
	file.IncRef()
	f.set(fd, file, cloexec)
	return nil
}

// Get returns the file at fd with a new reference, or nil.
func (f *FDTable) Get(fd int32) *fs.File {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.files[fd]
	if !ok {
		return nil
	}
	d.file.IncRef()
	return d.file
}

// GetFlags returns the cloexec flag for fd.
func (f *FDTable) GetFlags(fd int32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.files[fd]
	if !ok {
		return false, linuxerr.EBADF
	}
	return d.cloexec, nil
}

// SetFlags updates the cloexec flag for fd.
func (f *FDTable) SetFlags(fd int32, cloexec bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.files[fd]
	if !ok {
		return linuxerr.EBADF
	}
	d.cloexec = cloexec
	f.files[fd] = d
	return nil
}

// Remove takes fd out of the table, transferring its reference to the
// caller. It returns nil if fd is unused.
func (f *FDTable) Remove(fd int32) *fs.File {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.files[fd]
	if !ok {
		return nil
	}
	delete(f.files, fd)
	return d.file
}

// Fork returns a copy of the table for a new child, sharing the open
// files with an extra reference each. The child table enforces lim, the
// child's own limit set, not the parent's.
func (f *FDTable) Fork(lim *limits.LimitSet) *FDTable {
	f.mu.Lock()
	defer f.mu.Unlock()
	nt := NewFDTable(lim)
	for fd, d := range f.files {
		d.file.IncRef()
		nt.files[fd] = d
	}
	return nt
}

// CloseCloexec drops every descriptor marked close-on-exec.
func (f *FDTable) CloseCloexec() {
	f.mu.Lock()
	var closing []*fs.File
	for fd, d := range f.files {
		if d.cloexec {
			closing = append(closing, d.file)
			delete(f.files, fd)
		}
	}
	f.mu.Unlock()
	for _, file := range closing {
		file.DecRef()
	}
}

// GetFDs returns the live descriptor numbers in ascending order.
func (f *FDTable) GetFDs() []int32 {
	f.mu.Lock()
	fds := make([]int32, 0, len(f.files))
	for fd := range f.files {
		fds = append(fds, fd)
	}
	f.mu.Unlock()
	sort.Slice(fds, func(i, j int) bool { return fds[i] < fds[j] })
	return fds
}

// destroy drops all descriptors and their references.
func (f *FDTable) destroy() {
	f.mu.Lock()
	files := f.files
	f.files = make(map[int32]descriptor)
	f.mu.Unlock()
	for _, d := range files {
		d.file.DecRef()
	}
}
