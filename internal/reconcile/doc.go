// Package reconcile diffs the items a kit wants installed against what a
// scope's registry says ck installed and what is actually on disk, and
// applies the resulting plan.
//
// Planning is split from execution. [CollectProbePaths] and [ProbePaths] gather a
// read-only snapshot of the filesystem, [Build] turns that snapshot into a
// [Plan] without touching the disk, and an [Executor] applies a plan,
// committing every completed action to the scope ledger as it goes. An
// interrupted run therefore leaves a ledger that matches the disk, and the
// next Build produces only the remaining work.
package reconcile
