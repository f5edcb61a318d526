package etl

import (
	"fmt"

	"github.com/sells-group/dwq/internal/model"
)

// Stage names a step of an entity sub-pipeline.
type Stage string

// Pipeline stages, in execution order.
const (
	StageExtract   Stage = "extract"
	StageTransform Stage = "transform"
	StageLoad      Stage = "load"
	StageDone      Stage = "done"
)

// ExtractionError means the source could not produce an entity's batch.
// It aborts only that entity's sub-pipeline.
type ExtractionError struct {
	Entity model.Entity
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Entity, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// LoadError means an entity's batch could not be written. The batch is
// rolled back in full.
type LoadError struct {
	Entity model.Entity
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Entity, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
