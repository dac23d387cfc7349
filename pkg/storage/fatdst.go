package storage

import (
	"context"
	"encoding/binary"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
)

// FAT stores local wall-clock write times, so the UTC time reported for a
// file moves whenever the local UTC offset changes (daylight saving). To
// recover the real time, the writer packs the offset in effect at write time
// plus a hash of the written wall-clock time into the low bits of the
// creation time:
//
//	creation ticks (100ns) = high bits of real creation | hash(31) | offset(7)
//
// The payload is only trusted while the hash still matches the current
// write time. If the file was modified by a writer unaware of the scheme,
// verification fails and the raw time is used. This is a workaround with
// known limits: the creation time is shifted by up to ~7.6 hours and
// offsets are stored with quarter-hour precision.
const (
	fatOffsetBits  = 7
	fatHashBits    = 31
	fatPayloadBits = fatOffsetBits + fatHashBits
	fatPayloadMask = int64(1)<<fatPayloadBits - 1
	fatOffsetMask  = int64(1)<<fatOffsetBits - 1
	fatHashMask    = uint64(1)<<fatHashBits - 1
	fatOffsetBias  = 64
	quarterHour    = 15 * 60
)

func fatWallHash(wallTime int64) int64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(wallTime))
	return int64(xxhash.Sum64(buf[:]) & fatHashMask)
}

// EncodeFatTime returns the creation time to store after writing a file
// whose reported write time is writeTime while the UTC offset is utcOffset seconds.
func EncodeFatTime(creation time.Time, writeTime int64, utcOffset int) time.Time {
	code := int64(utcOffset/quarterHour+fatOffsetBias) & fatOffsetMask
	payload := fatWallHash(writeTime+int64(utcOffset))<<fatOffsetBits | code

	ticks := creation.UnixNano() / 100
	ticks = ticks&^fatPayloadMask | payload
	return time.Unix(0, ticks*100).UTC()
}

// CorrectFatTime recovers the UTC write time from a reported write time and
// the encoded creation time. ok is false when the payload does not verify.
func CorrectFatTime(creation time.Time, writeTime int64, currentOffset int) (corrected int64, ok bool) {
	payload := (creation.UnixNano() / 100) & fatPayloadMask
	code := payload & fatOffsetMask
	hash := payload >> fatOffsetBits

	if hash != fatWallHash(writeTime+int64(currentOffset)) {
		return writeTime, false
	}
	encodedOffset := (code - fatOffsetBias) * quarterHour
	return writeTime + int64(currentOffset) - encodedOffset, true
}

// FatTimeProvider decorates a provider on a FAT-family filesystem and
// corrects file write times that carry an encoded offset.
type FatTimeProvider struct {
	DirEntryProvider

	births BirthTimer

	// Offset returns the current UTC offset in seconds
	Offset func() int
}

// NewFatTimeProvider wraps inner. Without creation time support the
// decorator passes entries through unchanged.
func NewFatTimeProvider(inner DirEntryProvider) *FatTimeProvider {
	births, _ := inner.(BirthTimer)
	return &FatTimeProvider{
		DirEntryProvider: inner,
		births:           births,
		Offset: func() int {
			_, offset := time.Now().Zone()
			return offset
		},
	}
}

// ListDirectory lists path and corrects file times
func (p *FatTimeProvider) ListDirectory(ctx context.Context, path string) ([]Entry, error) {
	entries, err := p.DirEntryProvider.ListDirectory(ctx, path)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Err == nil && entries[i].Kind == EntryFile {
			entries[i].ModTime = p.correct(filepath.Join(path, entries[i].Name), entries[i].ModTime)
		}
	}
	return entries, nil
}

// Lstat returns corrected metadata of path
func (p *FatTimeProvider) Lstat(ctx context.Context, path string) (Entry, error) {
	e, err := p.DirEntryProvider.Lstat(ctx, path)
	if err == nil && e.Kind == EntryFile {
		e.ModTime = p.correct(path, e.ModTime)
	}
	return e, err
}

// Stat returns corrected metadata of path
func (p *FatTimeProvider) Stat(ctx context.Context, path string) (Entry, error) {
	e, err := p.DirEntryProvider.Stat(ctx, path)
	if err == nil && e.Kind == EntryFile {
		e.ModTime = p.correct(path, e.ModTime)
	}
	return e, err
}

func (p *FatTimeProvider) correct(path string, writeTime int64) int64 {
	if p.births == nil {
		return writeTime
	}
	creation, ok := p.births.BirthTime(path)
	if !ok {
		return writeTime
	}
	corrected, _ := CorrectFatTime(creation, writeTime, p.Offset())
	return corrected
}

// ForRoot returns the provider to use below root: inner itself, or inner
// wrapped in a FatTimeProvider when root is on a FAT-family filesystem.
func ForRoot(inner DirEntryProvider, root string) DirEntryProvider {
	if _, isLocal := inner.(*Local); isLocal && IsFatFamily(root) {
		return NewFatTimeProvider(inner)
	}
	return inner
}
