// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watchdog

// SubscriberCount returns the number of live subscriptions on b.
func SubscriberCount(b *Broadcaster) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
