package telegram

import (
	"github.com/go-telegram/bot/models"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
)

// fileRef extracts the attachment of msg. Photos use the largest size.
// Kinds without a name get a fixed default name and MIME type.
func fileRef(msg *models.Message) (domain.FileRef, bool) {
	switch {
	case msg.Document != nil:
		d := msg.Document
		return domain.FileRef{
			ID:       d.FileID,
			Name:     orDefault(d.FileName, "document"),
			MimeType: orDefault(d.MimeType, "application/octet-stream"),
			Size:     int64(d.FileSize),
		}, true
	case len(msg.Photo) > 0:
		p := msg.Photo[len(msg.Photo)-1]
		return domain.FileRef{ID: p.FileID, Name: "photo.jpg", MimeType: "image/jpeg", Size: int64(p.FileSize)}, true
	case msg.Video != nil:
		v := msg.Video
		return domain.FileRef{
			ID:       v.FileID,
			Name:     orDefault(v.FileName, "video.mp4"),
			MimeType: orDefault(v.MimeType, "video/mp4"),
			Size:     int64(v.FileSize),
		}, true
	case msg.Audio != nil:
		a := msg.Audio
		return domain.FileRef{
			ID:       a.FileID,
			Name:     orDefault(a.FileName, "audio.mp3"),
			MimeType: orDefault(a.MimeType, "audio/mpeg"),
			Size:     int64(a.FileSize),
		}, true
	case msg.Voice != nil:
		v := msg.Voice
		return domain.FileRef{ID: v.FileID, Name: "voice.ogg", MimeType: orDefault(v.MimeType, "audio/ogg"), Size: int64(v.FileSize)}, true
	case msg.VideoNote != nil:
		v := msg.VideoNote
		return domain.FileRef{ID: v.FileID, Name: "video_note.mp4", MimeType: "video/mp4", Size: int64(v.FileSize)}, true
	}
	return domain.FileRef{}, false
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
