// Package runner executes registered tests one at a time across process
// launches that may crash.
//
// A test binary registers its tests in a fixed order on every launch:
//
//	func main() {
//		r := runner.New()
//		r.RunTests(func(r *runner.Runner) {
//			r.Run("parse header", testParseHeader)
//			r.Run("divide", testDivide)
//		})
//	}
//
// Nothing happens unless the run-request marker file exists. When it does,
// the runner loads the checkpoint, counts the launch, skips every test that
// already completed in an earlier launch and runs the next one. Progress is
// written to the checkpoint before and after each body, so a launch that dies
// inside a body resumes from there on the next launch. A driver relaunches
// the binary until the checkpoint is gone; see the relaunch drive command.
//
// Registration order must not change between launches. The checkpoint only
// stores a position, and reordering tests changes what that position means.
package runner
