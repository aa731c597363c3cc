package domain

import "time"

// PostShortLink is a promotional post authored in the admin bot.
// Empty asset names mean the post has no such asset.
type PostShortLink struct {
	ID          int64
	Name        string
	Description string
	ImageName   string
	ImageFileID string
	FileName    string
	FileFileID  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasImage reports whether the post carries an image.
func (p PostShortLink) HasImage() bool {
	return p.ImageName != "" && p.ImageFileID != ""
}

// HasFile reports whether the post carries a document.
func (p PostShortLink) HasFile() bool {
	return p.FileName != "" && p.FileFileID != ""
}
