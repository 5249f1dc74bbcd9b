// Package uploader coordinates chunked uploads of local files to a remote
// chunk store.
//
// # Overview
//
// A Coordinator owns an ordered collection of Tasks, one per distinct file
// content hash. Enqueue hashes the file and either returns the task already
// known for that hash or appends a new pending one. A scheduler admits
// pending tasks in enqueue order while fewer than MaxConcurrent uploads are
// active; each admitted task sends its missing chunks one at a time, in
// ascending index order, on its own goroutine.
//
// # Progress
//
// After every chunk the store replies with the full list of chunk indices it
// holds. That list replaces the task's own and is the only trigger for the
// merge: once it covers every chunk, MergeChunks is called and the task
// completes. The first error breaks the task with a typed Failure; the
// coordinator never retries on its own. Callers can use Retry, or re-enqueue
// with Form.Resume after a restart.
//
// # Concurrency
//
// The coordinator mutex guards the task list, the hash index and the active
// set; each task has its own lock for its progress fields. Locks are taken
// coordinator first, then task, and neither is held across a call to the
// store, a file read, or the OnChange callback.
package uploader
