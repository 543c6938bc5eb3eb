// Package memguard reads source files for parsing while keeping memory use
// bounded: large files are memory-mapped instead of copied onto the heap,
// a hard per-file ceiling rejects pathological inputs, and the process can
// be nudged to return heap to the OS between heavy passes.
package memguard

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"

	"golang.org/x/sys/unix"
)

// ErrMemoryLimit is returned when a file exceeds the configured hard
// ceiling. Callers treat it as a per-file failure, not a run failure.
var ErrMemoryLimit = errors.New("memory limit exceeded")

const (
	// DefaultMmapThreshold is the file size above which reads go through
	// mmap rather than a heap copy.
	DefaultMmapThreshold = 10 * 1024 * 1024
	// DefaultGCHeapFraction is the heap-in-use fraction of MemBudget above
	// which MaybeGC releases memory to the OS.
	DefaultGCHeapFraction = 0.80
)

// ReadStrategy names how a file's bytes are obtained.
type ReadStrategy string

const (
	StrategyDirect ReadStrategy = "direct"
	StrategyMmap   ReadStrategy = "mmap"
)

// Source holds file bytes together with their release mechanism.
// Close must be called once the bytes are no longer referenced; for
// mmapped sources the data is invalid afterwards.
type Source struct {
	Data   []byte
	mapped bool
}

// Close releases the underlying mapping, if any.
func (s *Source) Close() error {
	if s == nil || !s.mapped || s.Data == nil {
		return nil
	}
	err := unix.Munmap(s.Data)
	s.Data = nil
	return err
}

// Reader decides per file between a direct read and mmap, and enforces the
// hard size ceiling.
type Reader struct {
	// MmapThreshold is the size above which files are mmapped. Files at
	// exactly the threshold are read directly.
	MmapThreshold int64
	// MaxParseBytes rejects files larger than this with ErrMemoryLimit.
	// Zero means no ceiling.
	MaxParseBytes int64
	// MemBudget is the heap budget in bytes used by MaybeGC. Zero disables
	// the GC nudge.
	MemBudget uint64
	// GCHeapFraction is the fraction of MemBudget above which MaybeGC acts.
	GCHeapFraction float64

	log *slog.Logger
}

// NewReader returns a Reader with the default thresholds.
func NewReader(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		MmapThreshold:  DefaultMmapThreshold,
		GCHeapFraction: DefaultGCHeapFraction,
		log:            logger,
	}
}

// Strategy reports how a file of the given size would be read.
func (r *Reader) Strategy(size int64) ReadStrategy {
	if size > r.MmapThreshold {
		return StrategyMmap
	}
	return StrategyDirect
}

// ReadForParse returns the file's bytes using the size-appropriate
// strategy. Files over MaxParseBytes fail with ErrMemoryLimit.
func (r *Reader) ReadForParse(path string) (*Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	size := fi.Size()

	if r.MaxParseBytes > 0 && size > r.MaxParseBytes {
		return nil, fmt.Errorf("%s is %d bytes (limit %d): %w", path, size, r.MaxParseBytes, ErrMemoryLimit)
	}

	if r.Strategy(size) == StrategyDirect {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return &Source{Data: data}, nil
	}
	return r.mmapFile(path, size)
}

func (r *Reader) mmapFile(path string, size int64) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	// mmap of a zero-length file fails; fall back to a plain read.
	if size == 0 {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return &Source{Data: data}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		r.log.Warn("memguard.mmap.fallback", "path", path, "err", err)
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, fmt.Errorf("read %s: %w", path, rerr)
		}
		return &Source{Data: data}, nil
	}
	return &Source{Data: data, mapped: true}, nil
}

// MaybeGC releases heap back to the OS when usage crosses the configured
// fraction of the budget. Cheap to call between pipeline passes.
func (r *Reader) MaybeGC() bool {
	if r.MemBudget == 0 {
		return false
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if float64(ms.HeapInuse) < r.GCHeapFraction*float64(r.MemBudget) {
		return false
	}
	r.log.Info("memguard.gc", "heap_inuse", ms.HeapInuse, "budget", r.MemBudget)
	debug.FreeOSMemory()
	return true
}
