// Package engine is the public face of the task execution engine.
//
// An Engine owns a pending queue, a dispatcher bounded by a worker ceiling and
// a callback registry. Submit wraps a task.Func in a task and enqueues it; the
// returned Handle lets callers await the result from any goroutine.
//
//	eng, err := engine.New(cfg.Engine, logger)
//	eng.Start()
//	defer eng.Stop()
//
//	h, err := eng.Submit(fn, engine.WithParams(task.Params{"n": 1}))
//	result, err := h.Await(ctx)
package engine
