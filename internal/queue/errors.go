package queue

import "errors"

var (
	// ErrFull is returned by Enqueue when maxQueueSize is configured and the
	// combined lane+in-flight depth has reached it.
	ErrFull = errors.New("queue: capacity reached")

	// ErrNotFound is returned when an operation references an unknown job id.
	ErrNotFound = errors.New("queue: job not found")

	// ErrNotCancellable is returned by Cancel when the job is not in a lane
	// (e.g. already processing, or already terminal).
	ErrNotCancellable = errors.New("queue: cannot cancel")

	// ErrInvalidPriority is returned by Enqueue for an unrecognized priority.
	ErrInvalidPriority = errors.New("queue: invalid priority")
)
