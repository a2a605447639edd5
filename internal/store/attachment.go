package store

// AttachmentsForMessage returns the attachment previews of a message.
func (s Queries) AttachmentsForMessage(messageID string) ([]AttachmentPreview, error) {
	rows, err := s.q.Query(`
		SELECT id, message_id, name, size, mime_type, digest, attachment_key, fileserver_id
		FROM attachment_previews WHERE message_id = ?`, messageID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var atts []AttachmentPreview
	for rows.Next() {
		var a AttachmentPreview
		if err := rows.Scan(&a.ID, &a.MessageID, &a.Name, &a.Size, &a.MimeType,
			&a.Digest, &a.AttachmentKey, &a.FileserverID); err != nil {
			return nil, err
		}
		atts = append(atts, a)
	}
	return atts, rows.Err()
}
