// Package syncer decides which of two divergent representations of one
// logical item is authoritative. It only resolves content; creating or
// persisting records is the orchestrator's job.
package syncer

import (
	"github.com/danielgray/remsync/internal/task"
)

// Result is the synchronizer's output: the resolved task state and
// whether the counterpart record must be rewritten to match it.
type Result struct {
	Task        task.Task
	MadeChanges bool
}

// Synchronize resolves two records believed to represent the same
// logical item.
//
// updatesFrom is the record from the store that triggered the pass;
// toOlder is the counterpart, already transcoded into task form. The
// names are intentionally direction-free: a reminder-triggered pass
// calls this with the roles swapped.
//
// Rules:
//  1. updatesFrom wins only when strictly newer, carrying forward
//     toOlder's external ID if it lacks one. MadeChanges is set unless
//     the two records are already field-equal.
//  2. Otherwise toOlder wins unchanged; on equal timestamps the
//     counterpart is treated as authoritative.
//  3. Deletion dominates regardless of timestamps: a dropped deletion
//     carries more operational risk than a stray metadata update.
func Synchronize(updatesFrom, toOlder task.Task) Result {
	if updatesFrom.Deleted() || toOlder.Deleted() {
		out := resolve(updatesFrom, toOlder)
		out.Task.Status = task.StatusDeleted
		// Nothing to rewrite only when both sides already agree.
		out.MadeChanges = !(updatesFrom.Deleted() && toOlder.Deleted())
		return out
	}
	return resolve(updatesFrom, toOlder)
}

func resolve(updatesFrom, toOlder task.Task) Result {
	if updatesFrom.LastModified.After(toOlder.LastModified) {
		out := updatesFrom.Clone()
		if out.ExternalID == "" {
			out.ExternalID = toOlder.ExternalID
		}
		return Result{Task: out, MadeChanges: !updatesFrom.Equal(toOlder)}
	}
	return Result{Task: toOlder.Clone(), MadeChanges: false}
}
