// Package vcs synchronizes the local Mercurial working copy with its remote.
//
// Repository.CommitAndPush stages every change (hg addremove), commits it,
// pushes it and returns the resulting local revision number as reported by
// "hg id --num". The revision number is the key the 3Di service uses for the
// processed model built from the pushed changeset.
//
// Commands are executed through the Runner interface; ExecRunner is the
// os/exec implementation used in production.
package vcs
