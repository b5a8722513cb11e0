package notify

import "backlog/api/internal/store"

// Toggle adds actor to emoji's list when absent and removes it when present.
// The input map is never mutated; the returned map is a copy. An emoji whose
// list becomes empty is dropped so toggling twice restores the original map.
func Toggle(reactions store.Reactions, emoji, actor string) (store.Reactions, bool) {
	out := reactions.Clone()
	if out == nil {
		out = store.Reactions{}
	}

	users := out[emoji]
	for i, id := range users {
		if id != actor {
			continue
		}
		users = append(users[:i:i], users[i+1:]...)
		if len(users) == 0 {
			delete(out, emoji)
		} else {
			out[emoji] = users
		}
		return out, false
	}

	out[emoji] = append(users, actor)
	return out, true
}

// Count returns how many members reacted with emoji.
func Count(reactions store.Reactions, emoji string) int {
	return len(reactions[emoji])
}

// Reacted reports whether actor has reacted with emoji.
func Reacted(reactions store.Reactions, emoji, actor string) bool {
	for _, id := range reactions[emoji] {
		if id == actor {
			return true
		}
	}
	return false
}
