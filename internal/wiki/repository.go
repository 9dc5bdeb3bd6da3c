package wiki

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wikicards/app/internal/title"
)

// Repository defines persistence operations for wiki pages, revisions and files.
// Lookups of missing rows return nil without an error.
type Repository interface {
	GetPage(ctx context.Context, t title.Title) (*Page, error)
	SaveRevision(ctx context.Context, t title.Title, rev *Revision, html string) (*Page, error)
	FirstRevision(ctx context.Context, t title.Title) (*Revision, error)
	LatestRevision(ctx context.Context, t title.Title) (*Revision, error)
	Touched(ctx context.Context, t title.Title) (string, error)
	Touch(ctx context.Context, t title.Title, timestamp string) error
	FindFile(ctx context.Context, name string) (*File, error)
	SaveFile(ctx context.Context, file *File) error
	SearchTitles(ctx context.Context, query string, limit int) ([]Page, error)
	CountPages(ctx context.Context) (int64, error)
}

// GormRepository persists wiki data using a Gorm database connection.
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewRepository constructs a Gorm-backed repository implementation.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormRepository{db: db, logger: logger}, nil
}

var _ Repository = (*GormRepository)(nil)

// GetPage returns the page stored under t or nil when it does not exist.
func (r *GormRepository) GetPage(ctx context.Context, t title.Title) (*Page, error) {
	var page Page
	err := r.db.WithContext(ctx).
		Where("namespace = ? AND title = ?", int(t.Namespace), t.DBKey()).
		Take(&page).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"title": t.PrefixedText()}, err, "fetching page by title")
		return nil, eris.Wrapf(err, "fetching page: %s", t.PrefixedText())
	}

	return &page, nil
}

// SaveRevision stores rev as the newest revision of t, creating the page on first save.
// The page's cached HTML, touched timestamp and latest revision pointer move to rev.
func (r *GormRepository) SaveRevision(ctx context.Context, t title.Title, rev *Revision, html string) (*Page, error) {
	if rev == nil {
		return nil, eris.New("revision is nil")
	}
	if strings.TrimSpace(rev.Timestamp) == "" {
		return nil, eris.New("revision timestamp is required")
	}

	var saved Page
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("namespace = ? AND title = ?", int(t.Namespace), t.DBKey()).Take(&saved).Error
		switch {
		case eris.Is(err, gorm.ErrRecordNotFound):
			saved = Page{Namespace: int(t.Namespace), Title: t.DBKey(), HTML: html, Touched: rev.Timestamp}
			if createErr := tx.Create(&saved).Error; createErr != nil {
				return eris.Wrap(createErr, "creating page")
			}
		case err != nil:
			return eris.Wrap(err, "loading page")
		}

		rev.PageID = saved.ID
		if err := tx.Create(rev).Error; err != nil {
			return eris.Wrap(err, "creating revision")
		}

		saved.HTML = html
		saved.Touched = rev.Timestamp
		saved.LatestRevisionID = rev.ID
		if err := tx.Save(&saved).Error; err != nil {
			return eris.Wrap(err, "updating page")
		}

		return nil
	})
	if err != nil {
		r.logError(logrus.Fields{"title": t.PrefixedText()}, err, "saving revision")
		return nil, eris.Wrapf(err, "saving revision: %s", t.PrefixedText())
	}

	return &saved, nil
}

// FirstRevision returns the oldest revision of t.
func (r *GormRepository) FirstRevision(ctx context.Context, t title.Title) (*Revision, error) {
	return r.revision(ctx, t, false)
}

// LatestRevision returns the newest revision of t.
func (r *GormRepository) LatestRevision(ctx context.Context, t title.Title) (*Revision, error) {
	return r.revision(ctx, t, true)
}

func (r *GormRepository) revision(ctx context.Context, t title.Title, newest bool) (*Revision, error) {
	var rev Revision
	err := r.db.WithContext(ctx).
		Joins("JOIN pages ON pages.id = revisions.page_id AND pages.deleted_at IS NULL").
		Where("pages.namespace = ? AND pages.title = ?", int(t.Namespace), t.DBKey()).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Table: "revisions", Name: "timestamp"}, Desc: newest},
			{Column: clause.Column{Table: "revisions", Name: "id"}, Desc: newest},
		}}).
		Take(&rev).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"title": t.PrefixedText(), "newest": newest}, err, "fetching revision")
		return nil, eris.Wrapf(err, "fetching revision: %s", t.PrefixedText())
	}

	return &rev, nil
}

// Touched returns the page's touched timestamp, empty when the page does not exist.
func (r *GormRepository) Touched(ctx context.Context, t title.Title) (string, error) {
	page, err := r.GetPage(ctx, t)
	if err != nil {
		return "", err
	}
	if page == nil {
		return "", nil
	}
	return page.Touched, nil
}

// Touch moves the page's touched timestamp without creating a revision.
func (r *GormRepository) Touch(ctx context.Context, t title.Title, timestamp string) error {
	result := r.db.WithContext(ctx).
		Model(&Page{}).
		Where("namespace = ? AND title = ?", int(t.Namespace), t.DBKey()).
		Update("touched", timestamp)
	if result.Error != nil {
		r.logError(logrus.Fields{"title": t.PrefixedText()}, result.Error, "touching page")
		return eris.Wrapf(result.Error, "touching page: %s", t.PrefixedText())
	}
	if result.RowsAffected == 0 {
		return eris.Wrapf(ErrPageNotFound, "touching page: %s", t.PrefixedText())
	}

	return nil
}

// FindFile returns the file record for name (with or without the File: prefix) or nil when unknown.
func (r *GormRepository) FindFile(ctx context.Context, name string) (*File, error) {
	key, err := FileKey(name)
	if err != nil {
		return nil, err
	}

	var file File
	if err := r.db.WithContext(ctx).Where("name = ?", key).Take(&file).Error; err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"file": key}, err, "fetching file")
		return nil, eris.Wrapf(err, "fetching file: %s", key)
	}

	return &file, nil
}

// SaveFile inserts or replaces the file record keyed by its normalised name.
func (r *GormRepository) SaveFile(ctx context.Context, file *File) error {
	if file == nil {
		return eris.New("file is nil")
	}

	key, err := FileKey(file.Name)
	if err != nil {
		return err
	}
	file.Name = key

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"url", "width", "height", "media_type", "updated_at", "deleted_at"}),
	}).Create(file).Error
	if err != nil {
		r.logError(logrus.Fields{"file": key}, err, "saving file")
		return eris.Wrapf(err, "saving file: %s", key)
	}

	return nil
}

// SearchTitles returns content pages whose title contains query, ordered by title.
func (r *GormRepository) SearchTitles(ctx context.Context, query string, limit int) ([]Page, error) {
	pattern := "%" + escapeLike(strings.ReplaceAll(strings.TrimSpace(query), " ", "_")) + "%"

	var pages []Page
	err := r.db.WithContext(ctx).
		Where("namespace = ? AND title LIKE ? ESCAPE '\\'", int(title.NamespaceMain), pattern).
		Order("title ASC").
		Limit(limit).
		Find(&pages).Error
	if err != nil {
		r.logError(logrus.Fields{"query": query}, err, "searching titles")
		return nil, eris.Wrap(err, "searching titles")
	}

	return pages, nil
}

// CountPages returns the number of content pages.
func (r *GormRepository) CountPages(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&Page{}).Where("namespace = ?", int(title.NamespaceMain)).Count(&count).Error; err != nil {
		r.logError(nil, err, "counting pages")
		return 0, eris.Wrap(err, "counting pages")
	}
	return count, nil
}

// FileKey normalises a file name to the key files are stored under.
func FileKey(name string) (string, error) {
	parsed, err := title.Parse(name)
	if err != nil || parsed.Namespace != title.NamespaceFile {
		parsed, err = title.Parse("File:" + name)
	}
	if err != nil {
		return "", eris.Wrapf(err, "invalid file name: %q", name)
	}
	return parsed.DBKey(), nil
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

func (r *GormRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
