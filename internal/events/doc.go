// Package events provides the publish/subscribe primitives used to announce
// task lifecycle transitions.
//
// A Subject owns an ordered list of observers and fans each Event out to them
// synchronously. Tasks embed a Subject to announce their own lifecycle, and the
// dispatcher, callback registry and metrics collector subscribe to it.
//
// The primary components are:
// - Event: an ephemeral value describing one lifecycle transition of a task
// - Observer: interface for components that receive events
// - Subject: the emitter side, holding the observer list
package events
