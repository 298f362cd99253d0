// Package flr decodes JVM flight recordings: self-describing, chunked
// binary files of profiling and diagnostic events.
//
// A recording is a sequence of chunks. Each chunk is independently
// decodable: it embeds its own schema (the metadata record) and its own
// constant pools (checkpoint records), so chunks can be processed in
// isolation or in parallel, one goroutine per chunk.
//
// # Reading a recording
//
// OpenRecording accepts a whole recording file, bare or compressed
// (gzip, zstd, lz4, s2), and opens every chunk in it:
//
//	chunks, err := flr.OpenRecording(data)
//	if err != nil {
//	    return err
//	}
//	for _, c := range chunks {
//	    for ev, err := range c.Events() {
//	        if err != nil {
//	            return err
//	        }
//	        fmt.Println(ev.Name())
//	    }
//	}
//
// # Chunk lifecycle
//
// A chunk moves through fixed states: Unopened, HeaderParsed (after
// OpenChunk), MetadataLoaded (after LoadMetadata), Ready (after
// LoadConstantPools), and Closed. Open runs the first three steps in one
// call. Decoding operations require Ready and fail with errs.ErrNotReady
// in any other state; raw record scanning only needs HeaderParsed.
//
// The split exists for callers that want control over the expensive
// steps: scanning record extents needs no schema at all, and a tool that
// only counts event kinds can stop after LoadMetadata.
//
// # Lazy constant resolution
//
// Heavily shared values (thread descriptions, stack traces, symbols) are
// deduplicated through per-chunk constant pools. By default a decoded
// event carries value.ConstantRef placeholders for such fields, and
// Resolve expands a reference on demand, memoizing the result:
//
//	ev, _ := c.Decode(rec)
//	field, _ := ev.Value.(value.Struct).Get("eventThread")
//	ref := field.(value.ConstantRef)
//	thread, err := c.Resolve(ref.TypeID, ref.Key)
//
// WithEagerResolve moves that expansion into decoding itself, trading
// allocation for convenience.
package flr

import (
	"fmt"
	"iter"

	"github.com/flightrec/flr/chunk"
	"github.com/flightrec/flr/cpool"
	"github.com/flightrec/flr/errs"
	"github.com/flightrec/flr/event"
	"github.com/flightrec/flr/format"
	"github.com/flightrec/flr/internal/intern"
	"github.com/flightrec/flr/internal/options"
	"github.com/flightrec/flr/metadata"
	"github.com/flightrec/flr/recording"
	"github.com/flightrec/flr/value"
)

// ChunkState tracks how far a chunk has progressed through its decode
// lifecycle.
type ChunkState int

const (
	// Unopened is the zero state; no header has been parsed.
	Unopened ChunkState = iota
	// HeaderParsed means the header is validated; records can be scanned
	// but not decoded.
	HeaderParsed
	// MetadataLoaded means the type registry is built.
	MetadataLoaded
	// Ready means constant pools are indexed; events decode and constants
	// resolve.
	Ready
	// Closed means the chunk has released its references.
	Closed
)

func (s ChunkState) String() string {
	switch s {
	case Unopened:
		return "Unopened"
	case HeaderParsed:
		return "HeaderParsed"
	case MetadataLoaded:
		return "MetadataLoaded"
	case Ready:
		return "Ready"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// config collects the option-settable decoding knobs.
type config struct {
	strict   bool
	eager    bool
	intern   bool
	maxDepth int
}

func defaultConfig() config {
	return config{intern: true}
}

// Option configures how a chunk is opened and decoded.
type Option = options.Option[*config]

// WithStrictTypes makes decoding fail with errs.ErrUnknownEventType when a
// record's type id has no class in the registry, instead of wrapping the
// payload in a value.Opaque.
func WithStrictTypes() Option {
	return options.NoError(func(c *config) {
		c.strict = true
	})
}

// WithEagerResolve expands constant-pool references into their decoded
// values during event decoding, instead of leaving value.ConstantRef
// placeholders for the caller to resolve.
func WithEagerResolve() Option {
	return options.NoError(func(c *config) {
		c.eager = true
	})
}

// WithInternStrings controls string deduplication across the chunk's
// metadata, events, and pool entries. Enabled by default; disabling it
// trades memory for less hashing on decode.
func WithInternStrings(enabled bool) Option {
	return options.NoError(func(c *config) {
		c.intern = enabled
	})
}

// WithMaxDepth bounds nested value decoding and constant resolution.
// Corrupt chunks can nest classes or chain pool references without limit;
// the bound turns that into errs.ErrDepthLimitExceeded.
func WithMaxDepth(depth int) Option {
	return options.New(func(c *config) error {
		if depth <= 0 {
			return fmt.Errorf("max depth must be positive, got %d", depth)
		}
		c.maxDepth = depth

		return nil
	})
}

// Chunk drives one recording chunk through its decode lifecycle. It is not
// safe for concurrent use; decode distinct chunks in parallel instead, one
// Chunk per goroutine.
type Chunk struct {
	state ChunkState
	cfg   config

	header   chunk.Header
	chunk    *chunk.Chunk
	interner value.Interner
	registry *metadata.Registry
	decoder  *event.Decoder
	resolver *cpool.Resolver
}

// OpenChunk parses the chunk header at the start of data and returns a
// Chunk in state HeaderParsed. Bytes past the declared chunk size are
// ignored. The buffer is borrowed for the Chunk's lifetime and must not be
// mutated until Close.
//
// Parameters:
//   - data: buffer beginning with a chunk header
//   - opts: decoding options
//
// Returns:
//   - *Chunk: the opened chunk
//   - error: option errors, or header errors (errs.ErrBadMagic,
//     errs.ErrUnsupportedVersion, errs.ErrTruncatedHeader)
func OpenChunk(data []byte, opts ...Option) (*Chunk, error) {
	cfg := defaultConfig()
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, fmt.Errorf("invalid option: %w", err)
	}

	c, err := chunk.New(data)
	if err != nil {
		return nil, err
	}

	ch := &Chunk{
		state:  HeaderParsed,
		cfg:    cfg,
		header: c.Header(),
		chunk:  c,
	}
	if cfg.intern {
		ch.interner = intern.NewTable()
	}

	return ch, nil
}

// Open parses the header, loads metadata, and indexes constant pools in
// one call, returning a Ready chunk.
func Open(data []byte, opts ...Option) (*Chunk, error) {
	c, err := OpenChunk(data, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.LoadMetadata(); err != nil {
		return nil, err
	}
	if err := c.LoadConstantPools(); err != nil {
		return nil, err
	}

	return c, nil
}

// OpenRecording decompresses data if needed, splits it into chunks, and
// opens every chunk to Ready.
//
// Parameters:
//   - data: a whole recording file, bare or compressed
//   - opts: decoding options, applied to every chunk
//
// Returns:
//   - []*Chunk: one Ready chunk per file chunk, in file order
//   - error: the first decompression, split, or open failure
func OpenRecording(data []byte, opts ...Option) ([]*Chunk, error) {
	raw, err := recording.Decompress(data)
	if err != nil {
		return nil, err
	}

	buffers, err := recording.Split(raw)
	if err != nil {
		return nil, err
	}

	chunks := make([]*Chunk, 0, len(buffers))
	for i, buf := range buffers {
		c, err := Open(buf, opts...)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}

		chunks = append(chunks, c)
	}

	return chunks, nil
}

// State returns the chunk's lifecycle state.
func (c *Chunk) State() ChunkState {
	return c.state
}

// Header returns the parsed chunk header. It stays valid after Close.
func (c *Chunk) Header() chunk.Header {
	return c.header
}

// LoadMetadata parses the chunk's metadata record and builds the type
// registry, moving the chunk from HeaderParsed to MetadataLoaded.
//
// Returns:
//   - error: errs.ErrNotReady when called in any state but HeaderParsed;
//     errs.ErrInvalidMetadata when the header's metadata offset does not
//     point at a metadata record, or the payload is damaged
func (c *Chunk) LoadMetadata() error {
	if c.state != HeaderParsed {
		return c.stateError("LoadMetadata", HeaderParsed)
	}

	rec, err := c.chunk.RecordAt(c.header.MetadataOffset)
	if err != nil {
		return fmt.Errorf("metadata record: %w", err)
	}
	if rec.TypeID != format.EventTypeMetadata {
		return fmt.Errorf("%w: record at metadata offset %d has type id %d",
			errs.ErrInvalidMetadata, c.header.MetadataOffset, rec.TypeID)
	}

	reg, err := metadata.Parse(rec.Payload, c.interner)
	if err != nil {
		return err
	}

	c.registry = reg
	c.decoder = event.NewDecoder(reg, event.Policy{
		Strict:      c.cfg.strict,
		ResolveRefs: c.cfg.eager,
		Interner:    c.interner,
		MaxDepth:    c.cfg.maxDepth,
	})
	c.state = MetadataLoaded

	return nil
}

// LoadConstantPools walks the chunk's checkpoint chain and indexes every
// constant pool, moving the chunk from MetadataLoaded to Ready. Entries
// are indexed, not decoded; decoding happens on first resolution.
//
// Returns:
//   - error: errs.ErrNotReady when called in any state but MetadataLoaded;
//     errs.ErrInvalidCheckpoint for a damaged checkpoint chain
func (c *Chunk) LoadConstantPools() error {
	if c.state != MetadataLoaded {
		return c.stateError("LoadConstantPools", MetadataLoaded)
	}

	res, err := cpool.Load(c.chunk, c.decoder, cpool.Config{MaxDepth: c.cfg.maxDepth})
	if err != nil {
		return err
	}

	c.resolver = res
	c.state = Ready

	return nil
}

// Close releases the chunk's hold on the underlying buffer, registry, and
// pools. Closing is idempotent; every later operation fails with
// errs.ErrNotReady.
func (c *Chunk) Close() error {
	c.chunk = nil
	c.interner = nil
	c.registry = nil
	c.decoder = nil
	c.resolver = nil
	c.state = Closed

	return nil
}

// Records scans the chunk's records without touching payload bytes. It
// works from HeaderParsed onward, schema or not, so callers can enumerate
// chunks whose metadata they cannot parse.
func (c *Chunk) Records() iter.Seq2[chunk.RawRecord, error] {
	if c.state == Unopened || c.state == Closed {
		return func(yield func(chunk.RawRecord, error) bool) {
			yield(chunk.RawRecord{}, c.stateError("Records", HeaderParsed))
		}
	}

	return c.chunk.Records()
}

// Events decodes every event record in stream order, skipping the
// metadata and checkpoint records. Unknown event types decode to opaque
// events unless WithStrictTypes was set.
//
// Iteration stops at the first error. To skip past records that fail to
// decode, iterate Records and call Decode per record instead.
func (c *Chunk) Events() iter.Seq2[event.Event, error] {
	return func(yield func(event.Event, error) bool) {
		if err := c.ready("Events"); err != nil {
			yield(event.Event{}, err)
			return
		}

		for rec, err := range c.chunk.Records() {
			if err != nil {
				yield(event.Event{}, err)
				return
			}
			if rec.TypeID == format.EventTypeMetadata || rec.TypeID == format.EventTypeCheckpoint {
				continue
			}

			ev, err := c.decoder.DecodeRecord(rec, c.resolver)
			if err != nil {
				yield(event.Event{}, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// Decode decodes one scanned record into an event.
//
// Returns:
//   - event.Event: the decoded event
//   - error: errs.ErrNotReady before Ready or after Close, otherwise the
//     decoder's error
func (c *Chunk) Decode(rec chunk.RawRecord) (event.Event, error) {
	if err := c.ready("Decode"); err != nil {
		return event.Event{}, err
	}

	return c.decoder.DecodeRecord(rec, c.resolver)
}

// Resolve expands the constant-pool entry for (typeID, key), memoizing the
// result for later calls.
//
// Returns:
//   - value.Value: the decoded entry, value.Null for the reserved key 0
//   - error: errs.ErrNotReady, errs.ErrUnknownConstant,
//     errs.ErrCyclicConstantReference, or the entry's decode error
func (c *Chunk) Resolve(typeID, key int64) (value.Value, error) {
	if err := c.ready("Resolve"); err != nil {
		return nil, err
	}

	return c.resolver.Resolve(typeID, key)
}

// Registry returns the chunk's type registry.
func (c *Chunk) Registry() (*metadata.Registry, error) {
	if err := c.ready("Registry"); err != nil {
		return nil, err
	}

	return c.registry, nil
}

// Resolver returns the chunk's constant-pool resolver.
func (c *Chunk) Resolver() (*cpool.Resolver, error) {
	if err := c.ready("Resolver"); err != nil {
		return nil, err
	}

	return c.resolver, nil
}

func (c *Chunk) ready(op string) error {
	if c.state != Ready {
		return c.stateError(op, Ready)
	}

	return nil
}

func (c *Chunk) stateError(op string, want ChunkState) error {
	return fmt.Errorf("%w: %s requires state %s, chunk is %s", errs.ErrNotReady, op, want, c.state)
}
