// Package storage journals scheduled action outcomes.
//
// Every fired, failed, stopped or cancelled observation of a session is
// appended as a FireRecord so operators can see what a strategy did on a
// given day after the process has exited.
package storage
