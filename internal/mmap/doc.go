// Package mmap maps codec artifacts into memory read-only.
//
// LocalStore opens artifacts through a Mapping so that decoding a large code
// section reads straight from the page cache instead of going through a
// second buffer.
//
//	m, err := mmap.Open("codecs/000001.pqc")
//	if err != nil { ... }
//	defer m.Close()
//
//	_ = m.Advise(mmap.AccessSequential)
//	data := m.Bytes()
//
// On Unix the mapping uses mmap(2) and madvise(2). On Windows it uses
// CreateFileMapping/MapViewOfFile and Advise is a no-op.
//
// A Mapping is safe for concurrent readers. Close is idempotent, but callers
// must not touch a slice returned by Bytes after Close returns.
package mmap
