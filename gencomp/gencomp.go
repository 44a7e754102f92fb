// Package gencomp implements the generated-component router of §4.8: while
// many compute threads segment MAIN VBs in parallel, one of them at a time
// (serialized by a token the caller holds, not by this package) absorbs the
// lines that were classified as belonging to an out-of-band component (OOB,
// e.g. SAM PRIM) or a dependent component (DEPN, e.g. SAM DEPN), batches
// them into VBs of the configured target size, and the single dispatcher
// thread drains those batches back out in this order: OOB fully before
// DEPN, in-memory DEPN before offloaded DEPN, re-read prescriptions last.
package gencomp

import (
	"fmt"
	"sync"

	"github.com/arloliu/gnzcore/errs"
	"github.com/arloliu/gnzcore/internal/options"
)

// Type names one of the two generated-component kinds the router tracks.
type Type int

const (
	OOB Type = iota
	DEPN
	numTypes
)

func (t Type) String() string {
	switch t {
	case OOB:
		return "OOB"
	case DEPN:
		return "DEPN"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// DepnMethod selects how the router copes with a full DEPN queue: Offload
// compresses whole batches out to a private scratch file; Reread instead
// records file-offset prescriptions and leaves the bytes in the original
// input, to be re-extracted by the consuming VB's own compute thread.
type DepnMethod int

const (
	DepnNone DepnMethod = iota
	DepnOffload
	DepnReread
)

// Offset locates one gencomp line in the original input file, used by
// re-read prescriptions instead of copying the line's bytes into memory.
type Offset struct {
	Pos int64
	Len int
}

// Batch is everything absorbed for one (Type, CompI) pair between two
// flushes: every line's bytes concatenated in arrival order.
type Batch struct {
	CompI    int32
	NumLines int
	TxtData  []byte
}

// Prescription is one DEPN VB's worth of re-read instructions.
type Prescription struct {
	CompI  int32
	Lines  []Offset
	TxtLen int
}

// DispatchKind tags what Dispatch handed back.
type DispatchKind int

const (
	DispatchNone DispatchKind = iota
	DispatchBatch
	DispatchPrescription
)

// DispatchResult is one dispatcher-path answer: either a ready-to-use Batch
// or a Prescription the caller's VB must re-read itself, or neither (Kind
// == DispatchNone, "no data yet").
type DispatchResult struct {
	Kind         DispatchKind
	Batch        *Batch
	Prescription *Prescription
}

// RouterOption configures a Router at construction time.
type RouterOption = options.Option[*Router]

// WithVBSize sets the target accumulated-batch size in bytes before a
// component buffer is eligible for flushing, matching the MAIN VB's own
// target size (§4.8: "a MAIN VB is itself ≤ target size").
func WithVBSize(n int) RouterOption {
	return options.New(func(r *Router) error {
		if n <= 0 {
			return fmt.Errorf("gencomp: vb size must be positive, got %d", n)
		}
		r.vbSize = n

		return nil
	})
}

// WithQueueCapacity sets how many flushed batches may sit on one type's
// dispatch queue before the router declines (OOB) or offloads (DEPN).
func WithQueueCapacity(n int) RouterOption {
	return options.New(func(r *Router) error {
		if n <= 0 {
			return fmt.Errorf("gencomp: queue capacity must be positive, got %d", n)
		}
		r.queueCapacity = n

		return nil
	})
}

// WithDepnMethod selects how a full DEPN queue is relieved.
func WithDepnMethod(m DepnMethod) RouterOption {
	return options.NoError(func(r *Router) { r.depnMethod = m })
}

// WithForceReread makes every DEPN line go straight to a re-read
// prescription regardless of queue occupancy, instead of only once the
// queue fills up.
func WithForceReread(force bool) RouterOption {
	return options.NoError(func(r *Router) { r.forceReread = force })
}

// WithScratchDir sets the directory DEPN offload scratch files are created
// in (default os.TempDir()).
func WithScratchDir(dir string) RouterOption {
	return options.NoError(func(r *Router) { r.scratchDir = dir })
}

const (
	defaultVBSize        = 1 << 20 // 1MiB
	defaultQueueCapacity = 4
)

// Router holds all state protected by §4.8's single "gc_protected" mutex,
// plus the prescription list's own mutex (acquired only after mu, per §5's
// locking discipline {writer, gc_protected, prescriptions, per-context}).
//
// Absorb-path methods (Absorb, EndMainVB, FinishAbsorbing) are meant to be
// called from whichever compute thread currently holds the caller's own
// serializing absorb token; Dispatch-path methods (Dispatch,
// DeclarePrimIngestionComplete, Pending) are meant to be called only from
// the single dispatcher thread. Both sets may run concurrently with each
// other, never with themselves.
type Router struct {
	vbSize        int
	queueCapacity int
	depnMethod    DepnMethod
	forceReread   bool
	scratchDir    string

	mu              sync.Mutex
	queue           [numTypes][]*Batch // FIFO, index 0 is oldest
	current         [numTypes]*Batch   // in-progress accumulator
	numMainAbsorbed int
	finished        bool
	primIngestDone  bool
	offload         *offloadFile
	dispatched      [numTypes]int

	presMu            sync.Mutex // acquired only while mu is already held, or standalone from the dispatcher - never mu after presMu
	prescriptions     []*Prescription
	currentPres       *Prescription
	presRotatedThisVB bool
}

// NewRouter builds a Router ready to absorb lines.
func NewRouter(opts ...RouterOption) (*Router, error) {
	r := &Router{
		vbSize:        defaultVBSize,
		queueCapacity: defaultQueueCapacity,
		scratchDir:    defaultScratchDir(),
	}

	if err := options.Apply(r, opts...); err != nil {
		return nil, err
	}

	return r, nil
}

// Absorb implements the §4.8 absorb path for a single gencomp line.
// offset is nil unless the component is DEPN and re-read is in play.
func (r *Router) Absorb(gct Type, compI int32, line []byte, offset *Offset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.absorbLocked(gct, compI, line, offset)
}

func (r *Router) absorbLocked(gct Type, compI int32, line []byte, offset *Offset) error {
	if r.finished {
		return errs.ErrRouterFinished
	}

	cur := r.current[gct]
	if cur != nil && len(cur.TxtData)+len(line) > r.vbSize {
		if _, err := r.flushLocked(gct, false); err != nil {
			return err
		}
	}

	useReread := gct == DEPN && r.depnMethod == DepnReread && offset != nil &&
		(r.forceReread || len(r.queue[DEPN]) >= r.queueCapacity)

	if useReread {
		return r.appendRereadLocked(compI, *offset, len(line))
	}

	cur = r.current[gct]
	if cur == nil {
		cur = &Batch{CompI: compI}
		r.current[gct] = cur
	}

	cur.TxtData = append(cur.TxtData, line...)
	cur.NumLines++

	return nil
}

// appendRereadLocked records a line's file offset in the current
// prescription, rotating it into the completed list first if it would
// otherwise grow past vbSize. Rotation happens at most once per MAIN VB: a
// MAIN VB is itself never larger than vbSize, so even a MAIN VB made up
// entirely of DEPN lines cannot overflow the current prescription twice -
// EndMainVB resets the guard between VBs.
func (r *Router) appendRereadLocked(compI int32, off Offset, lineLen int) error {
	r.presMu.Lock()
	defer r.presMu.Unlock()

	if r.currentPres == nil {
		r.currentPres = &Prescription{CompI: compI}
	}

	if r.currentPres.TxtLen+lineLen > r.vbSize {
		if r.presRotatedThisVB {
			return fmt.Errorf(
				"gencomp: more than one re-read prescription rotated within a single MAIN VB (txt_len=%d vb_size=%d line_len=%d)",
				r.currentPres.TxtLen, r.vbSize, lineLen,
			)
		}

		r.prescriptions = append(r.prescriptions, r.currentPres)
		r.currentPres = &Prescription{CompI: compI}
		r.presRotatedThisVB = true
	}

	r.currentPres.Lines = append(r.currentPres.Lines, off)
	r.currentPres.TxtLen += lineLen

	return nil
}

// EndMainVB marks the end of one MAIN VB's Absorb calls: it advances the
// absorbed-VB counter and clears the per-VB rotation guard.
func (r *Router) EndMainVB() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.numMainAbsorbed++

	r.presMu.Lock()
	r.presRotatedThisVB = false
	r.presMu.Unlock()
}

// NumMainVBsAbsorbed reports how many MAIN VBs have completed absorption.
func (r *Router) NumMainVBsAbsorbed() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.numMainAbsorbed
}

// flushLocked implements §4.8's Flush for one component type. A flush
// finding the queue full declines for OOB (the caller's buffer keeps
// growing; one oversized VB later is not a correctness problem) and
// offloads the oldest queued DEPN batch to make room for DEPN. Returns
// whether a batch actually moved onto the queue.
func (r *Router) flushLocked(gct Type, isFinal bool) (bool, error) {
	cur := r.current[gct]
	if cur == nil || cur.NumLines == 0 {
		r.current[gct] = nil

		return false, nil
	}

	if len(r.queue[gct]) >= r.queueCapacity {
		if gct == OOB {
			return false, nil
		}

		if err := r.offloadOldestDEPNLocked(); err != nil {
			return false, err
		}
	}

	r.queue[gct] = append(r.queue[gct], cur)
	r.current[gct] = nil

	return true, nil
}

func (r *Router) offloadOldestDEPNLocked() error {
	oldest := r.queue[DEPN][0]
	r.queue[DEPN] = r.queue[DEPN][1:]

	if r.offload == nil {
		of, err := newOffloadFile(r.scratchDir)
		if err != nil {
			return fmt.Errorf("%w: %w", errs.ErrOffloadWriteFailed, err)
		}
		r.offload = of
	}

	if err := r.offload.write(oldest); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrOffloadWriteFailed, err)
	}

	return nil
}

// FinishAbsorbing performs the final flush: called once, after every MAIN
// VB has been absorbed, from what the original calls "the main thread,
// considered to be both absorb thread and dispatcher thread" since it is
// the only thread left running at that point. Any partially-filled current
// batch is pushed out regardless of size, and the open re-read prescription
// (if any) is closed out so Dispatch can start serving it.
func (r *Router) FinishAbsorbing() error {
	r.mu.Lock()
	for gct := Type(0); gct < numTypes; gct++ {
		if _, err := r.flushLocked(gct, true); err != nil {
			r.mu.Unlock()

			return err
		}
	}
	r.finished = true
	r.mu.Unlock()

	r.presMu.Lock()
	if r.currentPres != nil && len(r.currentPres.Lines) > 0 {
		r.prescriptions = append(r.prescriptions, r.currentPres)
		r.currentPres = nil
	}
	r.presMu.Unlock()

	return nil
}

// DeclarePrimIngestionComplete marks that every OOB/PRIM VB has been
// dispatched. Dispatch never looks past the OOB queue until this is
// called, matching §4.8's "OOB is fully consumed before DEPN".
func (r *Router) DeclarePrimIngestionComplete() {
	r.mu.Lock()
	r.primIngestDone = true
	r.mu.Unlock()
}

// Dispatch implements the §4.8 dispatcher path: it returns the next batch
// or re-read prescription to hand to a VB, in priority order (OOB,
// in-memory DEPN, offloaded DEPN, re-read prescriptions), or
// DispatchResult{Kind: DispatchNone} if nothing is ready yet.
func (r *Router) Dispatch() (DispatchResult, error) {
	r.mu.Lock()

	if len(r.queue[OOB]) > 0 {
		b := r.queue[OOB][0]
		r.queue[OOB] = r.queue[OOB][1:]
		r.dispatched[OOB]++
		r.mu.Unlock()

		return DispatchResult{Kind: DispatchBatch, Batch: b}, nil
	}

	if !r.primIngestDone {
		r.mu.Unlock()

		return DispatchResult{}, nil
	}

	if len(r.queue[DEPN]) > 0 {
		b := r.queue[DEPN][0]
		r.queue[DEPN] = r.queue[DEPN][1:]
		r.dispatched[DEPN]++
		r.mu.Unlock()

		return DispatchResult{Kind: DispatchBatch, Batch: b}, nil
	}

	offload := r.offload
	finished := r.finished
	r.mu.Unlock()

	if offload != nil && offload.hasMore() {
		b, ok, err := offload.next()
		if err != nil {
			return DispatchResult{}, err
		}
		if ok {
			r.mu.Lock()
			r.dispatched[DEPN]++
			r.mu.Unlock()

			return DispatchResult{Kind: DispatchBatch, Batch: b}, nil
		}
	}

	if finished && r.depnMethod == DepnReread {
		r.presMu.Lock()
		defer r.presMu.Unlock()

		if len(r.prescriptions) > 0 {
			p := r.prescriptions[0]
			r.prescriptions = r.prescriptions[1:]

			return DispatchResult{Kind: DispatchPrescription, Prescription: p}, nil
		}
	}

	return DispatchResult{}, nil
}

// Pending reports whether the router might still produce further batches
// or prescriptions: false only once absorbing has finished and every
// queue, scratch file, and prescription has been drained.
func (r *Router) Pending() bool {
	r.mu.Lock()
	if !r.finished {
		r.mu.Unlock()

		return true
	}
	if len(r.queue[OOB]) > 0 || len(r.queue[DEPN]) > 0 {
		r.mu.Unlock()

		return true
	}
	offload := r.offload
	r.mu.Unlock()

	if offload != nil && offload.hasMore() {
		return true
	}

	r.presMu.Lock()
	defer r.presMu.Unlock()

	return len(r.prescriptions) > 0
}

// Close releases the router's scratch file, if one was ever created.
// Callers invoke it once every queued, offloaded, and prescribed batch has
// been dispatched.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.offload == nil {
		return nil
	}

	return r.offload.close()
}
