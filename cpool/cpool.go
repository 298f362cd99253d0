// Package cpool loads a chunk's checkpoint records and resolves constant
// pools.
//
// Checkpoints form a backward chain: the chunk header points at the newest
// record and each record's delta field points at the one before it.
// Loading walks the chain, then applies checkpoints oldest first so a key
// written twice ends up with its newest value. Pool entries do not carry
// their own size, so loading measures each entry's extent through the
// event decoder and stores the raw bytes; decoding happens on first
// resolution and is memoized, successes and failures alike.
package cpool

import (
	"fmt"

	"github.com/flightrec/flr/chunk"
	"github.com/flightrec/flr/errs"
	"github.com/flightrec/flr/format"
	"github.com/flightrec/flr/value"
	"github.com/flightrec/flr/varint"
)

// DefaultMaxDepth bounds reference expansion when Config.MaxDepth is unset.
const DefaultMaxDepth = 64

// PayloadDecoder decodes and measures field-encoded values. The event
// decoder implements it; the interface keeps this package usable without
// binding to a concrete decoder.
type PayloadDecoder interface {
	// DecodeValue decodes one value of the given type from the start of
	// data, leaving constant-pool references unexpanded.
	DecodeValue(data []byte, typeID int64) (value.Value, int, error)
	// Measure returns the byte extent of one value of the given type.
	Measure(data []byte, typeID int64) (int, error)
}

// Config controls pool resolution.
type Config struct {
	// MaxDepth bounds nested reference expansion; 0 means DefaultMaxDepth.
	MaxDepth int
}

// Checkpoint is the header of one loaded checkpoint record.
type Checkpoint struct {
	// Offset is the record's chunk offset.
	Offset int64
	// StartTicks and DurationTicks locate the checkpoint on the tick clock.
	StartTicks    int64
	DurationTicks int64
	// Delta is the backward offset to the previous checkpoint, 0 at the
	// oldest.
	Delta int64
	// Mask declares what the checkpoint carries (format.CheckpointType bits).
	Mask format.CheckpointType
	// PoolCount is the number of per-type pools in the record.
	PoolCount int32
}

// entry resolution states.
const (
	entryUnresolved uint8 = iota
	entryResolving
	entryResolved
	entryFailed
)

// entry is one constant-pool slot: raw bytes until first resolution, then
// the memoized value or error.
type entry struct {
	data  []byte
	state uint8
	val   value.Value
	err   error
}

// Resolver resolves constant-pool references for one chunk. It implements
// the event decoder's Resolver interface. Entry bytes alias the chunk
// buffer, so the Resolver is valid for the chunk's lifetime. Not safe for
// concurrent use; resolution mutates memoization state.
type Resolver struct {
	dec         PayloadDecoder
	pools       map[int64]map[int64]*entry
	checkpoints []Checkpoint
	maxDepth    int
}

// Load walks the checkpoint chain of c and indexes every pool entry.
//
// A chunk without checkpoints (header offset 0) loads an empty resolver.
// Entry payloads are measured, not decoded: a malformed entry value
// surfaces on resolution, a structurally broken checkpoint fails the load.
//
// Parameters:
//   - c: the parsed chunk
//   - dec: decoder for the chunk's types, used to measure and decode entries
//   - cfg: resolution limits; the zero value applies defaults
//
// Returns:
//   - *Resolver: pools indexed, nothing decoded yet
//   - error: errs.ErrInvalidCheckpoint for chain or framing violations,
//     errs.ErrUnknownTypeReference when a pool's type has no class
func Load(c *chunk.Chunk, dec PayloadDecoder, cfg Config) (*Resolver, error) {
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	r := &Resolver{
		dec:      dec,
		pools:    make(map[int64]map[int64]*entry),
		maxDepth: maxDepth,
	}

	chain, err := walkChain(c)
	if err != nil {
		return nil, err
	}

	// Oldest first, so a key rewritten by a newer checkpoint wins.
	for i := len(chain) - 1; i >= 0; i-- {
		if err := r.indexCheckpoint(chain[i]); err != nil {
			return nil, err
		}
		r.checkpoints = append(r.checkpoints, chain[i].Checkpoint)
	}

	return r, nil
}

// loaded pairs a checkpoint header with its still-unparsed pool section.
type loaded struct {
	Checkpoint
	poolData []byte
}

// walkChain follows delta links from the header's constant-pool offset and
// returns the checkpoints newest first. Deltas must point strictly
// backward, so the walk terminates; a forward delta is rejected before it
// could loop.
func walkChain(c *chunk.Chunk) ([]loaded, error) {
	var chain []loaded

	offset := c.Header().ConstantPoolOffset

	for offset != 0 {
		rec, err := c.RecordAt(offset)
		if err != nil {
			return nil, fmt.Errorf("checkpoint at offset %d: %w", offset, err)
		}
		if rec.TypeID != format.EventTypeCheckpoint {
			return nil, fmt.Errorf("%w: record at offset %d has type id %d", errs.ErrInvalidCheckpoint, offset, rec.TypeID)
		}

		cp, poolData, err := parseCheckpointHeader(rec)
		if err != nil {
			return nil, err
		}

		chain = append(chain, loaded{Checkpoint: cp, poolData: poolData})

		if cp.Delta == 0 {
			break
		}
		if cp.Delta > 0 {
			return nil, fmt.Errorf("%w: forward delta %d at offset %d", errs.ErrInvalidCheckpoint, cp.Delta, offset)
		}

		offset += cp.Delta
	}

	return chain, nil
}

func parseCheckpointHeader(rec chunk.RawRecord) (Checkpoint, []byte, error) {
	cp := Checkpoint{Offset: rec.Offset}
	buf := rec.Payload
	pos := 0

	startTicks, n, err := varint.Int64(buf)
	if err != nil {
		return Checkpoint{}, nil, fmt.Errorf("checkpoint start ticks at offset %d: %w", rec.Offset, err)
	}
	cp.StartTicks = startTicks
	pos += n

	duration, n, err := varint.Int64(buf[pos:])
	if err != nil {
		return Checkpoint{}, nil, fmt.Errorf("checkpoint duration at offset %d: %w", rec.Offset, err)
	}
	cp.DurationTicks = duration
	pos += n

	delta, n, err := varint.Int64(buf[pos:])
	if err != nil {
		return Checkpoint{}, nil, fmt.Errorf("checkpoint delta at offset %d: %w", rec.Offset, err)
	}
	cp.Delta = delta
	pos += n

	if pos >= len(buf) {
		return Checkpoint{}, nil, fmt.Errorf("%w: checkpoint at offset %d ends before its mask", errs.ErrInvalidCheckpoint, rec.Offset)
	}
	cp.Mask = format.CheckpointType(buf[pos])
	pos++

	count, n, err := varint.Int32(buf[pos:])
	if err != nil {
		return Checkpoint{}, nil, fmt.Errorf("checkpoint pool count at offset %d: %w", rec.Offset, err)
	}
	if count < 0 {
		return Checkpoint{}, nil, fmt.Errorf("%w: checkpoint at offset %d declares %d pools", errs.ErrInvalidCheckpoint, rec.Offset, count)
	}
	cp.PoolCount = count
	pos += n

	return cp, buf[pos:], nil
}

// indexCheckpoint walks one checkpoint's pool section, measuring entry
// extents and storing raw slots. Later checkpoints overwrite earlier keys.
func (r *Resolver) indexCheckpoint(l loaded) error {
	buf := l.poolData
	pos := 0

	for range l.PoolCount {
		typeID, n, err := varint.Int64(buf[pos:])
		if err != nil {
			return fmt.Errorf("pool type id in checkpoint at offset %d: %w", l.Offset, err)
		}
		pos += n

		entryCount, n, err := varint.Int32(buf[pos:])
		if err != nil {
			return fmt.Errorf("pool %d entry count in checkpoint at offset %d: %w", typeID, l.Offset, err)
		}
		// A key alone takes at least one byte per entry.
		if entryCount < 0 || int64(entryCount) > int64(len(buf)-pos-n) {
			return fmt.Errorf("%w: pool %d declares %d entries, %d bytes remain", errs.ErrInvalidCheckpoint, typeID, entryCount, len(buf)-pos-n)
		}
		pos += n

		pool := r.pools[typeID]
		if pool == nil {
			pool = make(map[int64]*entry, entryCount)
			r.pools[typeID] = pool
		}

		for range entryCount {
			key, n, err := varint.Int64(buf[pos:])
			if err != nil {
				return fmt.Errorf("pool %d key in checkpoint at offset %d: %w", typeID, l.Offset, err)
			}
			pos += n

			extent, err := r.dec.Measure(buf[pos:], typeID)
			if err != nil {
				return fmt.Errorf("pool %d key %d in checkpoint at offset %d: %w", typeID, key, l.Offset, err)
			}

			pool[key] = &entry{data: buf[pos : pos+extent]}
			pos += extent
		}
	}

	return nil
}
