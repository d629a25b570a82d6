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

package pipe

import (
	"protonos.dev/protonos/pkg/abi/linux"
	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/waiter"
)

// Reader is the read end of a pipe, implementing fs.FileOperations.
type Reader struct {
	pipe *Pipe
}

// Read implements fs.FileOperations.Read. Pipes have no positions, so
// offset is ignored.
func (r *Reader) Read(dst []byte, offset int64) (int64, error) {
	return r.pipe.read(dst)
}

// Write implements fs.FileOperations.Write.
func (r *Reader) Write(src []byte, offset int64) (int64, error) {
	return 0, linuxerr.EBADF
}

// Seek implements fs.FileOperations.Seek.
func (r *Reader) Seek(current int64, whence int32, offset int64) (int64, error) {
	return 0, linuxerr.ESPIPE
}

// Stat implements fs.FileOperations.Stat.
func (r *Reader) Stat() (linux.Stat, error) {
	return r.pipe.stat()
}

// Release implements fs.FileOperations.Release.
func (r *Reader) Release() {
	r.pipe.rClose()
}

// Readiness implements waiter.Waitable.Readiness.
func (r *Reader) Readiness(mask waiter.EventMask) waiter.EventMask {
	return r.pipe.rReadiness() & mask
}

// EventRegister implements waiter.Waitable.EventRegister.
func (r *Reader) EventRegister(e *waiter.Entry, mask waiter.EventMask) {
	r.pipe.queue.EventRegister(e, mask)
}

// EventUnregister implements waiter.Waitable.EventUnregister.
func (r *Reader) EventUnregister(e *waiter.Entry) {
	r.pipe.queue.EventUnregister(e)
}

// Writer is the write end of a pipe, implementing fs.FileOperations.
type Writer struct {
	pipe *Pipe
}

// Read implements fs.FileOperations.Read.
func (w *Writer) Read(dst []byte, offset int64) (int64, error) {
	return 0, linuxerr.EBADF
}

// Write implements fs.FileOperations.Write. Offset is ignored.
func (w *Writer) Write(src []byte, offset int64) (int64, error) {
	return w.pipe.write(src)
}

// Seek implements fs.FileOperations.Seek.
func (w *Writer) Seek(current int64, whence int32, offset int64) (int64, error) {
	return 0, linuxerr.ESPIPE
}

// Stat implements fs.FileOperations.Stat.
func (w *Writer) Stat() (linux.Stat, error) {
	return w.pipe.stat()
}

// Release implements fs.FileOperations.Release.
func (w *Writer) Release() {
	w.pipe.wClose()
}

// Readiness implements waiter.Waitable.Readiness.
func (w *Writer) Readiness(mask waiter.EventMask) waiter.EventMask {
	return w.pipe.wReadiness() & mask
}

// EventRegister implements waiter.Waitable.EventRegister.
func (w *Writer) EventRegister(e *waiter.Entry, mask waiter.EventMask) {
	w.pipe.queue.EventRegister(e, mask)
}

// EventUnregister implements waiter.Waitable.EventUnregister.
func (w *Writer) EventUnregister(e *waiter.Entry) {
	w.pipe.queue.EventUnregister(e)
}
