package storage

import "fmt"

// Object key layout for conversation audio. Keys are built once, at write
// time, and recorded on the owning row.

func ConversationAudioPath(conversationID, filename string) string {
	return fmt.Sprintf("conversations/%s/%s", conversationID, filename)
}

func UtterancePath(conversationID string, ordinal int) string {
	return fmt.Sprintf("conversations/%s/utterances/utterance_%03d.wav", conversationID, ordinal)
}

func CombinedPath(conversationID, placeholder string) string {
	return fmt.Sprintf("conversations/%s/utterances/combined_%s.wav", conversationID, placeholder)
}

func ConversationPrefix(conversationID string) string {
	return fmt.Sprintf("conversations/%s/", conversationID)
}
