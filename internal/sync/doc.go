// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

/*
Package sync mirrors the backend's PVR state into the local store and issues
commands back over the same connection.

# Overview

After authentication the engine requests async metadata replay. The backend
streams its entire state (or, on reconnect, everything since the stored
watermark) as add/update/delete notifications, then marks the boundary with
initialSyncCompleted. From then on the same notifications arrive live and are
applied one by one.

# State machine

	not_started -> loading -> saving -> done

During loading, channel, recording, and guide event adds are buffered and
flushed in batches: channels and recordings in groups of 25, guide events
in groups of 50. Tags and deletes always apply immediately, tags because
each one rewrites its membership rows wholesale. Once done, every
notification is applied as it arrives.

# Ordering

All notifications pass through a single goroutine fed by an unbounded ordered
inbox, so repository writes never stall the connection's socket loops and the
backend's ordering is preserved end to end.

# Commands

Recording, recurring rule, guide query, and ticket commands run in the caller
goroutine as plain request/response round trips; they never touch the
notification path. Backends older than protocol 25 cannot update recurring
rules in place, so updates are synthesized as delete-then-add.
*/
package sync
