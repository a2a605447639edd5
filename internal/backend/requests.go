package backend

// MessageRef identifies a message to the backend by its correlation data.
type MessageRef struct {
	Timestamp int64
	Hash      string
}

// DownloadAvatarRequest builds a download_avatar request. key is the
// profile key the avatar was announced under; the response carries the
// avatar bytes under "avatar".
func DownloadAvatarRequest(url, key string) map[string]any {
	return map[string]any{
		"type": "download_avatar",
		"url":  url,
		"key":  key,
	}
}

// MarkAsReadRequest builds a mark_as_read request for the given
// conversation address and message timestamps.
func MarkAsReadRequest(conversation string, timestamps []int64) map[string]any {
	ts := make([]any, len(timestamps))
	for i, t := range timestamps {
		ts[i] = t
	}
	return map[string]any{
		"type":               "mark_as_read",
		"conversation":       conversation,
		"messagesTimestamps": ts,
	}
}

// DeleteMessagesRequest builds a delete_messages request. The response
// carries "ok".
func DeleteMessagesRequest(conversation string, refs []MessageRef) map[string]any {
	msgs := make([]any, len(refs))
	for i, r := range refs {
		msgs[i] = map[string]any{
			"timestamp": r.Timestamp,
			"hash":      r.Hash,
		}
	}
	return map[string]any{
		"type":         "delete_messages",
		"conversation": conversation,
		"messages":     msgs,
	}
}

// SendMessageRequest builds a send_message request. The response carries
// "ok" and, on success, the server-assigned content hash under "id".
func SendMessageRequest(conversation, text string) map[string]any {
	return map[string]any{
		"type":         "send_message",
		"conversation": conversation,
		"text":         text,
	}
}
