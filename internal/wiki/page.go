package wiki

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gorm.io/gorm"
)

// TimestampLayout is the compact UTC form (YYYYMMDDHHMMSS) revisions and touch times are stored in.
const TimestampLayout = "20060102150405"

// Page is the current state of a wiki page. HTML caches the rendering of the latest revision.
type Page struct {
	gorm.Model
	Namespace        int    `gorm:"uniqueIndex:idx_pages_title;not null"`
	Title            string `gorm:"size:255;uniqueIndex:idx_pages_title;not null"`
	HTML             string `gorm:"type:text;not null"`
	Touched          string `gorm:"size:14;not null"`
	LatestRevisionID uint
}

// TableName defines the table name for the Page model.
func (Page) TableName() string {
	return "pages"
}

// Revision is one saved edit of a page. UserName is empty when the author is unknown or hidden.
type Revision struct {
	gorm.Model
	PageID    uint   `gorm:"index;not null"`
	Timestamp string `gorm:"size:14;not null"`
	UserName  string `gorm:"size:255"`
	Comment   string `gorm:"size:500"`
	Source    string `gorm:"type:text;not null"`
}

// TableName defines the table name for the Revision model.
func (Revision) TableName() string {
	return "revisions"
}

// File is the repository record for an uploaded media file, keyed by its File: page name.
type File struct {
	gorm.Model
	Name      string `gorm:"size:255;uniqueIndex:idx_files_name;not null"`
	URL       string `gorm:"size:1024;not null"`
	Width     int
	Height    int
	MediaType string `gorm:"size:100"`
}

// TableName defines the table name for the File model.
func (File) TableName() string {
	return "files"
}

// FullURL returns the file URL as an absolute URL, prefixing server for site-relative paths.
func (f *File) FullURL(server string) string {
	if f == nil {
		return ""
	}
	if strings.HasPrefix(f.URL, "/") && !strings.HasPrefix(f.URL, "//") {
		return server + f.URL
	}
	return f.URL
}

// FormatTimestamp renders t in the storage timestamp format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a storage timestamp as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	parsed, err := time.ParseInLocation(TimestampLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "parsing timestamp: %q", value)
	}
	return parsed, nil
}
