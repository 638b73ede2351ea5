package policy

// AllowList restricts which chats may invoke commands. The zero value admits everyone.
type AllowList struct {
	ids map[int64]struct{}
}

// NewAllowList builds an allow list from chat ids. No ids means open mode.
func NewAllowList(ids []int64) AllowList {
	if len(ids) == 0 {
		return AllowList{}
	}

	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	return AllowList{ids: set}
}

// IsAllowed reports whether chatID may use the bot.
func (a AllowList) IsAllowed(chatID int64) bool {
	if len(a.ids) == 0 {
		return true
	}

	_, ok := a.ids[chatID]

	return ok
}

// Open reports whether the list admits every chat.
func (a AllowList) Open() bool {
	return len(a.ids) == 0
}
