package protocol

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"galemind/pkg/types"
)

// streamPhase tracks the lifecycle of one in-flight stream.
type streamPhase int

const (
	phaseCollecting streamPhase = iota
	phaseComplete
	phaseTimedOut
	phaseErrored
)

// streamState holds the gap-tracking structure for one stream id. Owned
// solely by the Reassembler under its mutex.
type streamState struct {
	phase      streamPhase
	chunks     map[uint64]types.Content
	kind       types.ContentKind
	total      uint64
	sawEnd     bool
	endSeq     uint64
	request    UnifiedRequest
	completion *types.Completion
	created    time.Time
	lastSeen   time.Time
}

// ReassemblerConfig tunes stream reconstruction.
type ReassemblerConfig struct {
	// Strict rejects chunks that do not arrive in consecutive sequence
	// order. The default tolerant mode buffers out-of-order chunks and
	// reassembles once the sequence is contiguous.
	Strict bool
	// IdleTimeout evicts streams that received no chunk for this long.
	// Zero disables eviction, which unbounds the state table;
	// NewReassembler logs that as a misconfiguration.
	IdleTimeout time.Duration
	// Logger receives the disabled-eviction warning. The zero value is
	// a no-op logger.
	Logger zerolog.Logger
	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Reassembler tracks in-flight multi-chunk streams by stream id, orders
// chunks by sequence number, detects completion and emits one reassembled
// request per stream.
type Reassembler struct {
	mu      sync.Mutex
	streams map[string]*streamState
	strict  bool
	idle    time.Duration
	now     func() time.Time
}

// NewReassembler builds a Reassembler from cfg.
func NewReassembler(cfg ReassemblerConfig) *Reassembler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if cfg.IdleTimeout <= 0 {
		cfg.Logger.Warn().Msg("stream idle eviction disabled, state table for abandoned streams is unbounded")
	}
	return &Reassembler{
		streams: make(map[string]*streamState),
		strict:  cfg.Strict,
		idle:    cfg.IdleTimeout,
		now:     now,
	}
}

// Accept ingests one chunk. It returns a non-nil request once the stream is
// complete. Duplicate and strict-mode out-of-order chunks are rejected
// without disturbing the stream; mixed content kinds and chunk-count
// overruns invalidate the whole stream and fail its completion handle.
func (ra *Reassembler) Accept(chunk *PartialChunk) (*types.InferenceRequest, error) {
	ra.mu.Lock()
	defer ra.mu.Unlock()

	id := chunk.Meta.StreamID
	if id == "" {
		return nil, newStreamError(StreamOutOfOrder, id, "stream_id is required")
	}
	seq := chunk.Meta.ChunkSequence
	if seq == 0 {
		return nil, newStreamError(StreamOutOfOrder, id, "chunk_sequence is 1-based")
	}

	st, ok := ra.streams[id]
	if !ok {
		st = &streamState{
			chunks:  make(map[uint64]types.Content),
			kind:    chunk.Request.Content.Kind,
			total:   chunk.Meta.TotalChunks,
			request: chunk.Request,
			created: ra.now(),
		}
		ra.streams[id] = st
	}
	st.lastSeen = ra.now()
	if st.completion == nil {
		st.completion = chunk.Completion
	}
	if st.total == 0 && chunk.Meta.TotalChunks > 0 {
		st.total = chunk.Meta.TotalChunks
	}

	if _, dup := st.chunks[seq]; dup {
		return nil, newStreamError(StreamDuplicateChunk, id, fmt.Sprintf("chunk %d already received", seq))
	}
	if st.sawEnd && chunk.Meta.EndOfStream {
		// Exactly one end marker per stream. A second one leaves the
		// stream unable to ever go contiguous, so invalidate it.
		err := newStreamError(StreamDuplicateChunk, id,
			fmt.Sprintf("chunk %d repeats end-of-stream, already marked at %d", seq, st.endSeq))
		ra.invalidate(id, st, err)
		return nil, err
	}
	if chunk.Request.Content.Kind != st.kind {
		err := newStreamError(StreamMixedContentType, id,
			fmt.Sprintf("chunk %d has kind %s, stream started with %s", seq, chunk.Request.Content.Kind, st.kind))
		ra.invalidate(id, st, err)
		return nil, err
	}
	if st.total > 0 && (seq > st.total || uint64(len(st.chunks))+1 > st.total) {
		err := newStreamError(StreamChunkCountExceeded, id,
			fmt.Sprintf("chunk %d exceeds declared total of %d", seq, st.total))
		ra.invalidate(id, st, err)
		return nil, err
	}
	if st.sawEnd && seq > st.endSeq {
		err := newStreamError(StreamChunkCountExceeded, id,
			fmt.Sprintf("chunk %d arrived after end-of-stream at %d", seq, st.endSeq))
		ra.invalidate(id, st, err)
		return nil, err
	}
	if ra.strict {
		if expected := uint64(len(st.chunks)) + 1; seq != expected {
			return nil, newStreamError(StreamOutOfOrder, id,
				fmt.Sprintf("chunk %d out of order, expected %d", seq, expected))
		}
	}

	st.chunks[seq] = chunk.Request.Content
	if chunk.Meta.EndOfStream {
		st.sawEnd = true
		st.endSeq = seq
	}

	if !st.sawEnd || !ra.contiguous(st) {
		return nil, nil
	}

	st.phase = phaseComplete
	delete(ra.streams, id)
	return ra.assemble(st), nil
}

// contiguous reports whether every sequence 1..endSeq is present.
func (ra *Reassembler) contiguous(st *streamState) bool {
	if uint64(len(st.chunks)) != st.endSeq {
		return false
	}
	for seq := uint64(1); seq <= st.endSeq; seq++ {
		if _, ok := st.chunks[seq]; !ok {
			return false
		}
	}
	return true
}

// assemble concatenates chunk contents in sequence order into one request.
func (ra *Reassembler) assemble(st *streamState) *types.InferenceRequest {
	var content types.Content
	switch st.kind {
	case types.ContentBinary:
		var buf bytes.Buffer
		for seq := uint64(1); seq <= st.endSeq; seq++ {
			buf.Write(st.chunks[seq].Binary)
		}
		content = types.BinaryContent(buf.Bytes())
	case types.ContentBase64:
		var b strings.Builder
		for seq := uint64(1); seq <= st.endSeq; seq++ {
			b.WriteString(st.chunks[seq].Base64)
		}
		content = types.Base64Content(b.String())
	default:
		var b strings.Builder
		for seq := uint64(1); seq <= st.endSeq; seq++ {
			b.WriteString(st.chunks[seq].Text)
		}
		content = types.TextContent(b.String())
	}

	u := st.request
	return &types.InferenceRequest{
		ID:           orGeneratedID(u.RequestID),
		Model:        u.Model,
		ModelVersion: u.ModelVersion,
		Protocol:     u.Protocol,
		Content:      content,
		Parameters:   u.Parameters,
		Metadata:     u.Metadata,
		Completion:   st.completion,
	}
}

// invalidate drops a stream after a violation and fails its completion
// handle, so a caller waiting since the first chunk is not left hanging
// until idle eviction. Caller holds ra.mu.
func (ra *Reassembler) invalidate(id string, st *streamState, err error) {
	st.phase = phaseErrored
	delete(ra.streams, id)
	if st.completion != nil {
		st.completion.Fail(err)
	}
}

// EvictIdle removes streams with no chunk activity within the idle timeout
// and fails their completion handles. It returns the number of evictions.
func (ra *Reassembler) EvictIdle() int {
	if ra.idle <= 0 {
		return 0
	}
	now := ra.now()
	ra.mu.Lock()
	defer ra.mu.Unlock()
	evicted := 0
	for id, st := range ra.streams {
		if now.Sub(st.lastSeen) < ra.idle {
			continue
		}
		st.phase = phaseTimedOut
		delete(ra.streams, id)
		evicted++
		if st.completion != nil {
			st.completion.Fail(newStreamError(StreamTimeout, id,
				fmt.Sprintf("no chunk received for %s", ra.idle)))
		}
	}
	return evicted
}

// Len reports the number of in-flight streams.
func (ra *Reassembler) Len() int {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	return len(ra.streams)
}

// StartJanitor periodically evicts idle streams until ctx is done. The
// sweep interval derives from the idle timeout; eviction disabled means no
// goroutine is started.
func (ra *Reassembler) StartJanitor(ctx context.Context) {
	if ra.idle <= 0 {
		return
	}
	interval := ra.idle / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ra.EvictIdle()
			}
		}
	}()
}
