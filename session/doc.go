// Package session establishes and decodes a redo build session.
//
// # Overview
//
// A build re-invokes redo (and its helper commands) once per dependency,
// usually through an intermediate shell script. The only channel between a
// parent and the process it spawns is the environment, so every process
// decodes a Session from REDO_* variables, and the first process of an
// invocation tree is responsible for writing them.
//
// # Entry Points
//
// Init: for commands that use the state database. On the first process of a
// tree it puts redo's helper commands on PATH (creating a temporary directory
// of symlinks when the install layout does not already provide them), marks
// the tree with REDO, and resolves the base directory. Nested invocations
// skip all of that.
//
// InitNoState: for commands that never touch the state database. Fills REDO
// and REDO_BASE with placeholders when absent.
//
// Inherit: decodes an already established environment. Fails with
// ErrNotInSession outside an invocation tree.
//
// # Lifetime
//
// A Session is built once at process start. The only sanctioned mutations
// after that are MarkLocksBroken and FillRunID, which also write back to the
// environment so later children observe them. The process that created the
// symlink directory owns it; Close removes it and must run on every exit
// path:
//
//	sess, err := session.Init(session.Options{}, targets...)
//	if err != nil {
//		return err
//	}
//	defer sess.Close()
//
// # Propagation
//
// Children see the environment as it was at spawn time. Environ returns the
// block to pass to exec.Cmd.Env; Child prepares the block for a child that
// builds a different target one level deeper.
package session
