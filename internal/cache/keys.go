package cache

import "fmt"

// Cache key layout. Invalidation happens on any write to the underlying
// rows, so TTLs are a backstop, not the consistency mechanism.

func ConversationListKey(limit, offset int) string {
	return fmt.Sprintf("conversations:list:%d:%d", limit, offset)
}

func ConversationKey(id string) string {
	return "conversation:" + id
}

func SpeakerListKey() string {
	return "speakers:list"
}
