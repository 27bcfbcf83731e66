package chunked

// ResultKind tags a Result.
type ResultKind int

const (
	// ResultData carries the payload of the next chunk in order.
	ResultData ResultKind = iota
	// ResultError ends the stream with Err.
	ResultError
	// ResultDone ends the stream normally.
	ResultDone
)

// Result is what the coordinator hands to the reader.
type Result struct {
	Kind ResultKind
	Data []byte
	Err  error
}

// reassembler holds fetched chunks that cannot be emitted yet and releases
// them strictly in order. It is owned by the coordinator goroutine; none of
// its methods may be called concurrently.
type reassembler struct {
	total   int
	pending map[int][]byte // fetched, not yet emitted
	cursor  int            // next index to emit
	credit  int            // chunks the reader has asked for
	gate    *gate
	out     chan<- Result
	obs     Observer
}

func newReassembler(total int, g *gate, out chan<- Result, obs Observer) *reassembler {
	return &reassembler{
		total:   total,
		pending: make(map[int][]byte),
		gate:    g,
		out:     out,
		obs:     obs,
	}
}

// insert stores a fetched chunk and drains. It reports whether the download
// is complete.
func (r *reassembler) insert(index int, data []byte) bool {
	if index < r.cursor {
		return false
	}
	r.pending[index] = data
	return r.drain()
}

// pull records a reader request for one more chunk and drains. The gate is
// opened only if the request is still unserved, so workers fetch ahead only
// while the reader is waiting. It reports whether the download is complete.
func (r *reassembler) pull() bool {
	r.credit++
	if r.drain() {
		return true
	}
	if r.credit > 0 {
		r.gate.Open()
	}
	return false
}

// drain emits consecutive chunks from the cursor while the reader has credit.
// The gate is closed once the credit is spent. Done is sent when the cursor
// reaches the end.
func (r *reassembler) drain() bool {
	for r.credit > 0 && r.cursor < r.total {
		data, ok := r.pending[r.cursor]
		if !ok {
			break
		}
		delete(r.pending, r.cursor)
		r.out <- Result{Kind: ResultData, Data: data}
		r.obs.ChunkEmitted(r.cursor, len(data))
		r.cursor++
		r.credit--
	}

	if r.credit == 0 {
		r.gate.Close()
	}

	if r.done() {
		r.out <- Result{Kind: ResultDone}
		return true
	}
	return false
}

func (r *reassembler) done() bool {
	return r.cursor >= r.total
}

// reset drops every buffered chunk.
func (r *reassembler) reset() {
	clear(r.pending)
}

// buffered returns the number of chunks waiting to be emitted.
func (r *reassembler) buffered() int {
	return len(r.pending)
}
