package pipeline

import "fmt"

// Pipeline stages used for failure attribution.
const (
	StageRead      = "read"
	StageParse     = "parse"
	StageStructure = "structure"
	StageResolve   = "resolve"
)

// FileError records a per-file failure. A failed file is skipped; the run
// continues and reports the failure in the Result.
type FileError struct {
	RelPath string
	Stage   string
	Err     error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.RelPath, e.Stage, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Result summarizes a pipeline run.
type Result struct {
	Project      string
	Files        int
	Nodes        int
	Edges        int
	Cycles       [][]string
	Failures     []*FileError
	NoOp         bool
	Incremental  bool
	ChangedFiles int
}
