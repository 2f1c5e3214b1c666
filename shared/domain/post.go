package domain

import "fmt"

type PostKind int

const (
	Message PostKind = iota
	Attachment
)

// Post is one entry in a thread: either a numbered message or an attachment
// record. Message numbers are thread-local, dense, and 1-based; attachments
// carry no number and Text holds the filename.
type Post struct {
	Kind   PostKind
	Number int
	Author string
	Text   string
}

// Display renders the post the way it appears in RDT output and in the
// on-disk thread log.
func (p *Post) Display() string {
	if p.Kind == Attachment {
		return fmt.Sprintf("%s uploaded %s", p.Author, p.Text)
	}
	return fmt.Sprintf("%d %s: %s", p.Number, p.Author, p.Text)
}
