// Package api exposes the task engine over HTTP. It handles routing, request
// validation and response formatting, translating HTTP concerns into engine
// submissions, lookups and removals.
package api
