// Package jobs runs background work on a fixed set of workers.
//
// A Job wraps a Func and a Callback. Once added to a Pool it is queued in a
// single FIFO queue shared by all workers. Exactly one worker runs it and
// delivers the outcome to the Callback as an Event: Result when Func returned
// a value, Exception when it returned an error or panicked.
//
// Job lifecycle:
//
//	not-started --Add/dequeue--> running --+--> done       (Result)
//	                                       +--> exception  (Exception)
//
// Invariants:
//   - a Job is run at most once, adding it twice returns ErrJobSubmitted
//   - every job added before Close reaches done or exception
//   - a failing or panicking job never stops its worker
//   - Close does not interrupt running jobs, each worker exits after it
//     dequeues its shutdown element
//   - jobs are dequeued in submission order, completion order is not defined
//
// Pool.Add never blocks on execution. Results can be consumed either in the
// Callback, which runs on the worker goroutine, or by Job.Wait.
package jobs
