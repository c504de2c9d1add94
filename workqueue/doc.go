/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package workqueue runs webhook-triggered agent runs in the background.
// At most a fixed number run at once, and a second trigger for an issue
// that is already queued or running is dropped.
package workqueue
