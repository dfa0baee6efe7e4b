package worker

// MarshalerMap looks up, by task type name, how to serialize a Task
// into the bytes an asynq.Task payload carries.
type MarshalerMap map[string]func(Task) ([]byte, error)

// UnmarshalerMap is MarshalerMap's inverse, keyed the same way, used
// on the queue worker side to rebuild a Task from an asynq payload.
type UnmarshalerMap map[string]func([]byte) (Task, error)
