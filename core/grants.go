package core

import (
	"sort"
	"strings"
)

// ExpandAccessActions returns actions closed under the implies relation,
// deduplicated and sorted.
func ExpandAccessActions(actions []AccessAction) []AccessAction {
	set := toActionSet(actions)
	for action := range set {
		for _, implied := range impliedAccessActions[action] {
			set[implied] = struct{}{}
		}
	}
	return sortedActions(set)
}

// ActionsCover reports whether every requested action is present in stored.
// Requested actions are not expanded.
func ActionsCover(stored []AccessAction, requested []AccessAction) bool {
	storedSet := toActionSet(stored)
	for action := range toActionSet(requested) {
		if _, ok := storedSet[action]; !ok {
			return false
		}
	}
	return true
}

func normalizeAccessActions(actions []AccessAction) []AccessAction {
	if len(actions) == 0 {
		return []AccessAction{}
	}
	return sortedActions(toActionSet(actions))
}

func toActionSet(actions []AccessAction) map[AccessAction]struct{} {
	set := make(map[AccessAction]struct{}, len(actions))
	for _, action := range actions {
		trimmed := AccessAction(strings.TrimSpace(strings.ToLower(string(action))))
		if trimmed == "" {
			continue
		}
		set[trimmed] = struct{}{}
	}
	return set
}

func sortedActions(set map[AccessAction]struct{}) []AccessAction {
	out := make([]AccessAction, 0, len(set))
	for action := range set {
		out = append(out, action)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func joinAccessActions(actions []AccessAction) string {
	parts := make([]string, 0, len(actions))
	for _, action := range actions {
		parts = append(parts, string(action))
	}
	return strings.Join(parts, ",")
}

func accessActionStrings(actions []AccessAction) []string {
	out := make([]string, 0, len(actions))
	for _, action := range actions {
		out = append(out, string(action))
	}
	return out
}
