package utils

import (
	"context"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ParallelFactor controls the max level of parallelization. This might be useful
// to set in tests where too much parallelism actually slows tests down in
// aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
	quarterProcs := float64(ParallelFactor) * .25
	if quarterProcs > 8 {
		ParallelFactor = int(quarterProcs)
	}
}

type (
	// MemberWorkFunc runs for each work item (member) of a group.
	MemberWorkFunc func(memberNum, workNum int)
	// GroupWorkFunc runs to determine what work members should do, if any.
	GroupWorkFunc func(groupNum, groupSize, from, to int) MemberWorkFunc
)

// GroupWorkParallel splits totalSize work items into contiguous groups and runs each group in its own
// goroutine. Every item is handed to exactly one member call. Groups stop between items once ctx is done,
// and the context's error is returned. A panicking member stops its group and is returned as an error
// after every group has finished; in both cases the work is incomplete.
func GroupWorkParallel(ctx context.Context, totalSize int, groupWork GroupWorkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if totalSize <= 0 {
		return nil
	}
	numGroups := ParallelFactor
	if numGroups > totalSize {
		numGroups = totalSize
	}
	groupSize := totalSize / numGroups
	extra := totalSize % numGroups

	var (
		wait     sync.WaitGroup
		panicMu  sync.Mutex
		panicErr error
	)
	wait.Add(numGroups)
	for groupNum := 0; groupNum < numGroups; groupNum++ {
		groupNum := groupNum
		go func() {
			defer wait.Done()
			defer func() {
				if r := recover(); r != nil {
					panicMu.Lock()
					panicErr = multierr.Append(panicErr, errors.Errorf("work group %d panicked: %v", groupNum, r))
					panicMu.Unlock()
				}
			}()

			from := groupSize * groupNum
			to := groupSize * (groupNum + 1)
			if groupNum == numGroups-1 {
				to += extra
			}
			memberWork := groupWork(groupNum, to-from, from, to)
			if memberWork == nil {
				return
			}
			memberNum := 0
			for workNum := from; workNum < to; workNum++ {
				if ctx.Err() != nil {
					return
				}
				memberWork(memberNum, workNum)
				memberNum++
			}
		}()
	}
	wait.Wait()
	if panicErr != nil {
		return panicErr
	}
	return ctx.Err()
}
