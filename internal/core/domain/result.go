package domain

import "time"

// Slot is the place in the output tree assigned to one block.
type Slot struct {
	// Name is the unique block name.
	Name string
	// Out is the logical, document-relative directory, slash separated.
	Out string
	// Dir is the absolute output directory.
	Dir string
}

// Job is a block paired with its slot.
type Job struct {
	Block SourceBlock
	Slot  Slot
}

// BuildStatus is the outcome of one block build.
type BuildStatus string

const (
	// StatusSucceeded means artifacts and glue are available.
	StatusSucceeded BuildStatus = "succeeded"
	// StatusFailed means the block produced no output. Err explains why.
	StatusFailed BuildStatus = "failed"
)

// BuildResult is the outcome of building one block.
type BuildResult struct {
	Name   string
	Slot   Slot
	Status BuildStatus
	Cached bool
	// StagingDir holds the artifacts until they are promoted into Slot.Dir.
	StagingDir string
	// Artifacts are relative to StagingDir (and to Slot.Dir once promoted).
	Artifacts []string
	Glue      string
	// Diagnostic is only set on failure.
	Diagnostic string
	Err        *BlockError
	Duration   time.Duration
}

// Succeeded reports whether the build succeeded.
func (r BuildResult) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Failed returns a failed result for job carrying err.
func Failed(job Job, err error) BuildResult {
	be := AsBlockError(job.Slot.Name, err)
	return BuildResult{
		Name:       job.Slot.Name,
		Slot:       job.Slot,
		Status:     StatusFailed,
		Diagnostic: be.Diagnostic,
		Err:        be,
	}
}

// BlockErrors collects the errors of failed results in order.
func BlockErrors(results []BuildResult) []*BlockError {
	var errs []*BlockError
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}
