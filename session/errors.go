package session

import (
	"errors"
	"fmt"

	"github.com/zhubert/redo-core/env"
)

// ErrNotInSession is returned by Inherit when REDO is not set, meaning the
// process was not started from inside a redo invocation tree.
var ErrNotInSession = errors.New("must be run from inside a .do")

// ErrAlreadyAssigned is returned by WriteOnce.Set on a second assignment.
var ErrAlreadyAssigned = errors.New("value already assigned")

// DepthError reports a REDO_DEPTH value with characters other than spaces.
type DepthError struct {
	Depth string
}

func (e *DepthError) Error() string {
	return fmt.Sprintf("%s=%q contains non-space characters", env.Depth, e.Depth)
}
