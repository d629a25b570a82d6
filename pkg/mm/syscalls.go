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

package mm

import (
	"protonos.dev/protonos/pkg/abi/linux"
	"protonos.dev/protonos/pkg/cleanup"
	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/fs"
	"protonos.dev/protonos/pkg/hostarch"
)

// MMapOpts specifies a mmap call.
type MMapOpts struct {
	// Addr is the suggested address, mandatory when Fixed is set.
	Addr hostarch.Addr

	// Length is the requested length in bytes, not yet page-aligned.
	Length uint64

	// Perms is the requested protection.
	Perms hostarch.AccessType

	// Fixed requires the mapping to be placed exactly at Addr,
	// displacing any existing mappings there.
	Fixed bool

	// Private makes modifications invisible to other processes and to
	// the backing file.
	Private bool

	// File is the backing file, or nil for anonymous memory.
	File *fs.File

	// Offset is the page-aligned file offset of the mapping's start.
	Offset int64
}

// MMap establishes a new mapping and returns its address.
func (mm *MemoryManager) MMap(opts MMapOpts) (hostarch.Addr, error) {
	if opts.Length == 0 {
		return 0, linuxerr.EINVAL
	}
	length, ok := hostarch.PageRoundUp(uintptr(opts.Length))
	if !ok {
		return 0, linuxerr.ENOMEM
	}
	if opts.Offset < 0 || !hostarch.Addr(opts.Offset).IsPageAligned() {
		return 0, linuxerr.EINVAL
	}
	if opts.File != nil {
		flags := opts.File.Flags()
		if !flags.Read {
			return 0, linuxerr.EACCES
		}
		// Writes through a shared mapping reach the file, so the file
		// must have been opened for writing.
		if !opts.Private && opts.Perms.Write && !flags.Write {
			return 0, linuxerr.EACCES
		}
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()

	var addr hostarch.Addr
	if opts.Fixed {
		if !opts.Addr.IsPageAligned() {
			return 0, linuxerr.EINVAL
		}
		ar, ok := opts.Addr.ToRange(uint64(length))
		if !ok || ar.Start < MinUserAddr || ar.End > MaxUserAddr {
			return 0, linuxerr.ENOMEM
		}
		// MAP_FIXED silently displaces whatever was there.
		mm.unmapLocked(ar)
		addr = ar.Start
	} else {
		var err error
		addr, err = mm.findGap(opts.Addr, uint64(length))
		if err != nil {
			return 0, err
		}
	}
	ar := hostarch.AddrRange{Start: addr, End: addr + hostarch.Addr(length)}

	if err := mm.populateLocked(ar, opts); err != nil {
		return 0, err
	}

	r := &Region{
		ar:      ar,
		at:      opts.Perms,
		maxAt:   hostarch.AnyAccess,
		private: opts.Private,
		file:    opts.File,
		off:     opts.Offset,
	}
	if r.file != nil {
		r.file.IncRef()
		if !r.private {
			// Shared read-only files cannot be made writable later.
			if !r.file.Flags().Write {
				r.maxAt = hostarch.ReadExecute
			}
		}
	}
	mm.regions.ReplaceOrInsert(r)
	return addr, nil
}

// populateLocked allocates, fills and maps every page of ar. On failure
// nothing remains mapped.
//
// Preconditions: mm.mu must be locked for writing; ar is page-aligned and
// unmapped.
func (mm *MemoryManager) populateLocked(ar hostarch.AddrRange, opts MMapOpts) error {
	var cu cleanup.Cleanup
	defer cu.Clean()

	fileOff := opts.Offset
	for page := ar.Start; page < ar.End; page += hostarch.PageSize {
		frame, err := mm.mem.AllocPage()
		if err != nil {
			return err
		}
		if opts.File != nil {
			// Short reads leave the tail of the page zeroed, which is
			// exactly the behavior for mapping past end of file.
			if _, err := readFull(opts.File, mm.mem.Slice(frame), fileOff); err != nil {
				mm.mem.DecRef(frame)
				return err
			}
			fileOff += hostarch.PageSize
		}
		if err := mm.as.MapPage(page, frame, opts.Perms); err != nil {
			mm.mem.DecRef(frame)
			return err
		}
		page := page
		cu.Add(func() { mm.as.UnmapPage(page) })
	}
	cu.Release()
	return nil
}

// readFull reads into dst from offset until dst is full or the file ends.
func readFull(f *fs.File, dst []byte, offset int64) (int64, error) {
	var done int64
	for done < int64(len(dst)) {
		n, err := f.Preadv(dst[done:], offset+done)
		if err != nil {
			return done, err
		}
		if n == 0 {
			break
		}
		done += n
	}
	return done, nil
}

// MUnmap removes all mappings in [addr, addr+length).
func (mm *MemoryManager) MUnmap(addr hostarch.Addr, length uint64) error {
	if addr != addr.RoundDown() || length == 0 {
		return linuxerr.EINVAL
	}
	la, ok := hostarch.PageRoundUp(uintptr(length))
	if !ok {
		return linuxerr.EINVAL
	}
	ar, ok := addr.ToRange(uint64(la))
	if !ok {
		return linuxerr.EINVAL
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.unmapLocked(ar)
	return nil
}

// unmapLocked removes the parts of all regions that fall inside ar,
// trimming or splitting regions that straddle its edges.
//
// Preconditions: mm.mu must be locked for writing; ar is page-aligned.
func (mm *MemoryManager) unmapLocked(ar hostarch.AddrRange) {
	for _, r := range mm.regionsIn(ar) {
		isect := r.ar.Intersect(ar)
		for page := isect.Start; page < isect.End; page += hostarch.PageSize {
			mm.as.UnmapPage(page)
		}
		switch {
		case isect == r.ar:
			mm.regions.Delete(r)
			r.release()
		case isect.Start == r.ar.Start:
			// Trim from the left. The tree is keyed by start address,
			// so the region has to be reinserted.
			mm.regions.Delete(r)
			mm.regions.ReplaceOrInsert(r.copyRegion(hostarch.AddrRange{Start: isect.End, End: r.ar.End}))
			r.release()
		case isect.End == r.ar.End:
			r.ar.End = isect.Start
		default:
			// Punch a hole in the middle.
			mm.regions.ReplaceOrInsert(r.copyRegion(hostarch.AddrRange{Start: isect.End, End: r.ar.End}))
			r.ar.End = isect.Start
		}
	}
}

// splitRegionAt ensures addr is a region boundary: a region containing
// addr strictly inside is cut in two.
//
// Preconditions: mm.mu must be locked for writing; addr is page-aligned.
func (mm *MemoryManager) splitRegionAt(addr hostarch.Addr) {
	r := mm.findRegion(addr)
	if r == nil || r.ar.Start == addr {
		return
	}
	mm.regions.ReplaceOrInsert(r.copyRegion(hostarch.AddrRange{Start: addr, End: r.ar.End}))
	r.ar.End = addr
}

// MProtect changes the protection of all mapped pages in
// [addr, addr+length). Unmapped gaps in the range are skipped.
func (mm *MemoryManager) MProtect(addr hostarch.Addr, length uint64, at hostarch.AccessType) error {
	if addr != addr.RoundDown() {
		return linuxerr.EINVAL
	}
	if length == 0 {
		return nil
	}
	la, ok := hostarch.PageRoundUp(uintptr(length))
	if !ok {
		return linuxerr.ENOMEM
	}
	ar, ok := addr.ToRange(uint64(la))
	if !ok {
		return linuxerr.ENOMEM
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()

	regions := mm.regionsIn(ar)
	for _, r := range regions {
		if !r.maxAt.SupersetOf(at) {
			return linuxerr.EACCES
		}
	}

	// Cut regions at the range edges so protection changes apply to
	// exactly the requested pages.
	mm.splitRegionAt(ar.Start)
	mm.splitRegionAt(ar.End)
	for _, r := range mm.regionsIn(ar) {
		r.at = at
		for page := r.ar.Start; page < r.ar.End; page += hostarch.PageSize {
			mm.as.Protect(page, at)
		}
	}
	return nil
}

// MSync flushes shared file-backed pages in [addr, addr+length) to their
// backing file.
func (mm *MemoryManager) MSync(addr hostarch.Addr, length uint64, flags int32) error {
	if addr != addr.RoundDown() {
		return linuxerr.EINVAL
	}
	if flags&^(linux.MS_ASYNC|linux.MS_SYNC|linux.MS_INVALIDATE) != 0 {
		return linuxerr.EINVAL
	}
	sync := flags & (linux.MS_ASYNC | linux.MS_SYNC)
	if sync != linux.MS_ASYNC && sync != linux.MS_SYNC {
		return linuxerr.EINVAL
	}
	la, ok := hostarch.PageRoundUp(uintptr(length))
	if !ok {
		return linuxerr.ENOMEM
	}
	ar, ok := addr.ToRange(uint64(la))
	if !ok {
		return linuxerr.ENOMEM
	}

	mm.mu.RLock()
	defer mm.mu.RUnlock()

	// The whole range must be mapped.
	pos := ar.Start
	regions := mm.regionsIn(ar)
	for _, r := range regions {
		if r.ar.Start > pos {
			return linuxerr.ENOMEM
		}
		if r.ar.End < ar.End {
			pos = r.ar.End
		} else {
			pos = ar.End
		}
	}
	if pos != ar.End {
		return linuxerr.ENOMEM
	}

	for _, r := range regions {
		if r.private || r.file == nil {
			continue
		}
		isect := r.ar.Intersect(ar)
		for page := isect.Start; page < isect.End; page += hostarch.PageSize {
			frame, _, ok := mm.as.Lookup(page)
			if !ok {
				continue
			}
			off := r.off + int64(page-r.ar.Start)
			if _, err := r.file.Pwritev(mm.mem.Slice(frame), off); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetBrkStart fixes the bottom of the heap segment. The loader calls this
// once after placing the binary.
func (mm *MemoryManager) SetBrkStart(addr hostarch.Addr) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	addr = addr.MustRoundUp()
	mm.brk = hostarch.AddrRange{Start: addr, End: addr}
}

// Brk implements brk(2): a zero addr queries the current break, anything
// else tries to move it. The current break is returned in both cases;
// failures leave it in place.
func (mm *MemoryManager) Brk(addr hostarch.Addr) hostarch.Addr {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if addr == 0 || addr < mm.brk.Start || addr > MaxUserAddr {
		return mm.brk.End
	}

	oldEnd := mm.brk.End.MustRoundUp()
	newEnd := addr.MustRoundUp()
	switch {
	case newEnd > oldEnd:
		var cu cleanup.Cleanup
		for page := oldEnd; page < newEnd; page += hostarch.PageSize {
			frame, err := mm.mem.AllocPage()
			if err != nil {
				cu.Clean()
				return mm.brk.End
			}
			if err := mm.as.MapPage(page, frame, hostarch.ReadWrite); err != nil {
				mm.mem.DecRef(frame)
				cu.Clean()
				return mm.brk.End
			}
			page := page
			cu.Add(func() { mm.as.UnmapPage(page) })
		}
		cu.Release()
	case newEnd < oldEnd:
		for page := newEnd; page < oldEnd; page += hostarch.PageSize {
			mm.as.UnmapPage(page)
		}
	}
	mm.brk.End = addr
	return addr
}

// BrkSetup reports the current heap segment, for diagnostics.
func (mm *MemoryManager) BrkSetup() hostarch.AddrRange {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.brk
}

// MapStack maps a read-write anonymous region of the given size ending at
// top and returns its range. The loader uses it to build the initial user
// stack.
func (mm *MemoryManager) MapStack(top hostarch.Addr, size uint64) (hostarch.AddrRange, error) {
	length, ok := hostarch.PageRoundUp(uintptr(size))
	if !ok || !top.IsPageAligned() {
		return hostarch.AddrRange{}, linuxerr.EINVAL
	}
	addr, err := mm.MMap(MMapOpts{
		Addr:    top - hostarch.Addr(length),
		Length:  uint64(length),
		Perms:   hostarch.ReadWrite,
		Fixed:   true,
		Private: true,
	})
	if err != nil {
		return hostarch.AddrRange{}, err
	}
	return hostarch.AddrRange{Start: addr, End: addr + hostarch.Addr(length)}, nil
}
