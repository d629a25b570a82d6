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

// Package memfs is a memory-backed filesystem with a flat namespace. It
// backs open(2) and gives mmap a real file to populate from and sync to.
package memfs

import (
	"sync"

	"protonos.dev/protonos/pkg/abi/linux"
	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/fs"
	"protonos.dev/protonos/pkg/waiter"
)

type inode struct {
	mu   sync.RWMutex
	data []byte
	mode linux.FileMode
	ino  uint64
}

// Filesystem is a flat in-memory file store.
type Filesystem struct {
	mu      sync.Mutex
	files   map[string]*inode
	nextIno uint64
}

// New returns an empty Filesystem.
func New() *Filesystem {
	return &Filesystem{files: make(map[string]*inode)}
}

// Create adds a file with the given contents, replacing any existing one.
// It exists so boot code and tests can seed the namespace.
func (f *Filesystem) Create(name string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextIno++
	f.files[name] = &inode{
		data: append([]byte(nil), data...),
		mode: linux.ModeRegular | 0644,
		ino:  f.nextIno,
	}
}

// Open opens name with open(2) semantics for the flag bits the kernel
// supports. It returns a new fs.File on success.
func (f *Filesystem) Open(name string, flags uint32) (*fs.File, error) {
	if name == "" {
		return nil, linuxerr.ENOENT
	}

	f.mu.Lock()
	in, ok := f.files[name]
	if !ok {
		if flags&linux.O_CREAT == 0 {
			f.mu.Unlock()
			return nil, linuxerr.ENOENT
		}
		f.nextIno++
		in = &inode{mode: linux.ModeRegular | 0644, ino: f.nextIno}
		f.files[name] = in
	} else if flags&(linux.O_CREAT|linux.O_EXCL) == linux.O_CREAT|linux.O_EXCL {
		f.mu.Unlock()
		return nil, linuxerr.EEXIST
	}
	f.mu.Unlock()

	accessMode := flags & linux.O_ACCMODE
	fileFlags := fs.FileFlags{
		Read:        accessMode == linux.O_RDONLY || accessMode == linux.O_RDWR,
		Write:       accessMode == linux.O_WRONLY || accessMode == linux.O_RDWR,
		NonBlocking: flags&linux.O_NONBLOCK != 0,
		Append:      flags&linux.O_APPEND != 0,
	}

	if flags&linux.O_TRUNC != 0 && fileFlags.Write {
		in.mu.Lock()
		in.data = in.data[:0]
		in.mu.Unlock()
	}

	return fs.NewFile(&fileOperations{inode: in}, fileFlags), nil
}

// Stat returns the attributes of name without opening it.
func (f *Filesystem) Stat(name string) (linux.Stat, error) {
	f.mu.Lock()
	in, ok := f.files[name]
	f.mu.Unlock()
	if !ok {
		return linux.Stat{}, linuxerr.ENOENT
	}
	return in.stat(), nil
}

// Unlink removes name.
func (f *Filesystem) Unlink(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[name]; !ok {
		return linuxerr.ENOENT
	}
	delete(f.files, name)
	return nil
}

func (in *inode) stat() linux.Stat {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return linux.Stat{
		Ino:     in.ino,
		Nlink:   1,
		Mode:    uint32(in.mode),
		Size:    int64(len(in.data)),
		Blksize: linux.DefaultBlockSize,
		Blocks:  (int64(len(in.data)) + 511) / 512,
	}
}

// fileOperations implements fs.FileOperations for a memfs regular file.
type fileOperations struct {
	waiter.AlwaysReady
	inode *inode
}

// Read implements fs.FileOperations.Read.
func (ops *fileOperations) Read(dst []byte, offset int64) (int64, error) {
	if offset < 0 {
		return 0, linuxerr.EINVAL
	}
	in := ops.inode
	in.mu.RLock()
	defer in.mu.RUnlock()
	if offset >= int64(len(in.data)) {
		return 0, nil
	}
	n := copy(dst, in.data[offset:])
	return int64(n), nil
}

// Write implements fs.FileOperations.Write, extending the file as needed.
func (ops *fileOperations) Write(src []byte, offset int64) (int64, error) {
	if offset < 0 {
		return 0, linuxerr.EINVAL
	}
	in := ops.inode
	in.mu.Lock()
	defer in.mu.Unlock()
	if end := offset + int64(len(src)); end > int64(len(in.data)) {
		grown := make([]byte, end)
		copy(grown, in.data)
		in.data = grown
	}
	n := copy(in.data[offset:], src)
	return int64(n), nil
}

// Seek implements fs.FileOperations.Seek.
func (ops *fileOperations) Seek(current int64, whence int32, offset int64) (int64, error) {
	var base int64
	switch whence {
	case linux.SEEK_SET:
		base = 0
	case linux.SEEK_CUR:
		base = current
	case linux.SEEK_END:
		in := ops.inode
		in.mu.RLock()
		base = int64(len(in.data))
		in.mu.RUnlock()
	default:
		return 0, linuxerr.EINVAL
	}
	next := base + offset
	if next < 0 {
		return 0, linuxerr.EINVAL
	}
	return next, nil
}

// Stat implements fs.FileOperations.Stat.
func (ops *fileOperations) Stat() (linux.Stat, error) {
	return ops.inode.stat(), nil
}

// Release implements fs.FileOperations.Release.
func (ops *fileOperations) Release() {
}
