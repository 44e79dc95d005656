// Package journal provides an optional SQLite-backed record of test attempts.
//
// The checkpoint file only says how far a session got. The journal says what
// happened on the way: every launch records an attempt row before a test body
// starts and completes it after the body returns. An attempt that is never
// completed belongs to a launch that died inside that test, which lets the
// runner name the tests that crashed.
//
// # Tables
//
//   - sessions: one row per test session (UUIDv7 id, start/finish, totals)
//   - attempts: one row per executed test body, ordered by rowid
//
// # Database Configuration
//
//   - WAL mode
//   - synchronous=FULL: a begun attempt must survive the crash it records
//   - busy_timeout=5000
//   - foreign_keys=ON
//
// Journal errors never fail a test run; the runner logs them and carries on.
package journal
