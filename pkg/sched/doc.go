// Package sched provides the cooperative loop the livedom engine runs on.
//
// A Loop executes macrotasks one at a time on a single goroutine. Work queued
// with Defer is a microtask: it runs after the current task finishes and before
// the next one starts, which is how the renderer guarantees that mount
// callbacks observe the final document shape. Timers post macrotasks.
//
// Future is a settle-once value whose continuations always run on the loop.
//
//	loop := sched.New()
//	go loop.Run(ctx)
//	defer loop.Close()
//
//	f := sched.Go(loop, ctx, fetch)
//	f.Then(func(v *vdom.VNode, err error) { ... })
package sched
