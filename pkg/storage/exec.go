package storage

import "context"

// None is the success value of operations that produce nothing.
type None = struct{}

// Executor executes one kind of storage operation.
//
// Op is the operation value (e.g. CreateFile) and T its success value, so every
// operation kind keeps its own result shape: ReadFile yields an optional *File,
// CreateFile and Symlink yield None. Callers that only need one operation kind
// depend on Executor[ThatOp, ItsResult] and never on the Storage internals.
//
// Implementations must be safe for concurrent use.
type Executor[Op, T any] interface {
	// Exec runs op and returns its typed result.
	//
	// Failures are returned as errors; outcomes that are part of the operation
	// contract (an absent file on read, an existing link on symlink) are not.
	Exec(ctx context.Context, op Op) (T, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc[Op, T any] func(ctx context.Context, op Op) (T, error)

// Exec calls f(ctx, op).
func (f ExecutorFunc[Op, T]) Exec(ctx context.Context, op Op) (T, error) {
	return f(ctx, op)
}

// FileCreator returns the Executor for CreateFile operations.
func (s *Storage) FileCreator() Executor[CreateFile, None] {
	return ExecutorFunc[CreateFile, None](s.CreateFile)
}

// Linker returns the Executor for Symlink operations.
func (s *Storage) Linker() Executor[Symlink, None] {
	return ExecutorFunc[Symlink, None](s.Symlink)
}

// FileReader returns the Executor for ReadFile operations.
func (s *Storage) FileReader() Executor[ReadFile, *File] {
	return ExecutorFunc[ReadFile, *File](s.ReadFile)
}
