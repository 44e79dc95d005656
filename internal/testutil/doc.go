// Package testutil provides deterministic stand-ins used by relaunch tests:
// a stepping wall clock for journal timestamps, a sequential session id
// generator and an exit recorder for code paths that terminate the process.
package testutil
