package service

import (
	"net/url"

	"github.com/Masterminds/squirrel"
	"github.com/go-playground/validator"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/bookmarks-api/internal/db"
	"github.com/Rogue-Bear-Innovations/bookmarks-api/internal/shortcode"
)

var (
	ErrInvalidURL = errors.New("invalid URL")
	ErrURLExists  = errors.New("URL already exists")
	ErrNotFound   = errors.New("bookmark not found")
)

var urlValidator = validator.New()

type (
	Bookmarks struct {
		db     *gorm.DB
		logger *zap.SugaredLogger
	}

	// BookmarkPage carries one page of bookmarks plus the pagination
	// numbers computed from the full owned count.
	BookmarkPage struct {
		Items      []db.Bookmark
		Page       int
		Pages      int
		TotalCount int64
		PrevPage   *int
		NextPage   *int
		HasNext    bool
		HasPrev    bool
	}

	BookmarkStats struct {
		ID       uint64
		URL      string
		ShortURL string
		Visits   uint64
	}
)

func NewBookmarks(conn *gorm.DB, l *zap.SugaredLogger) *Bookmarks {
	return &Bookmarks{
		db:     conn,
		logger: l,
	}
}

func (s *Bookmarks) List(userID uint64, page, perPage int) (*BookmarkPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}

	var total int64
	res := s.db.Model(&db.Bookmark{}).Where("user_id = ?", userID).Count(&total)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "count bookmarks")
	}

	items := make([]db.Bookmark, 0)
	res = s.db.Where("user_id = ?", userID).
		Order("id").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&items)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "find bookmarks")
	}

	pages := int((total + int64(perPage) - 1) / int64(perPage))

	out := BookmarkPage{
		Items:      items,
		Page:       page,
		Pages:      pages,
		TotalCount: total,
		HasNext:    page < pages,
		HasPrev:    page > 1 && total > 0,
	}
	if out.HasPrev {
		prev := page - 1
		out.PrevPage = &prev
	}
	if out.HasNext {
		next := page + 1
		out.NextPage = &next
	}
	return &out, nil
}

func (s *Bookmarks) Create(userID uint64, rawURL, body string) (*db.Bookmark, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	model := db.Bookmark{
		URL:    rawURL,
		Body:   body,
		UserID: userID,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&db.Bookmark{}).Where("url = ?", rawURL).Count(&count).Error; err != nil {
			return errors.Wrap(err, "check url exists")
		}
		if count > 0 {
			return ErrURLExists
		}

		if err := tx.Create(&model).Error; err != nil {
			return errors.Wrap(err, "create bookmark")
		}

		// short code is the encoded row id, so it is only known post-insert
		model.ShortURL = shortcode.Encode(model.ID)
		return tx.Model(&model).Update("short_url", model.ShortURL).Error
	})
	if err != nil {
		return nil, err
	}
	return &model, nil
}

func (s *Bookmarks) Get(userID, id uint64) (*db.Bookmark, error) {
	model := db.Bookmark{}
	res := s.db.Where("user_id = ? AND id = ?", userID, id).First(&model)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, res.Error
	}
	return &model, nil
}

func (s *Bookmarks) Update(userID, id uint64, rawURL, body string) (*db.Bookmark, error) {
	model := db.Bookmark{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND id = ?", userID, id).First(&model)
		if res.Error != nil {
			if res.Error == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return res.Error
		}

		if err := validateURL(rawURL); err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&db.Bookmark{}).Where("url = ? AND id <> ?", rawURL, id).Count(&count).Error; err != nil {
			return errors.Wrap(err, "check url exists")
		}
		if count > 0 {
			return ErrURLExists
		}

		// map form so an empty body still overwrites
		res = tx.Model(&model).Updates(map[string]interface{}{
			"url":  rawURL,
			"body": body,
		})
		if res.Error != nil {
			return errors.Wrap(res.Error, "update model")
		}

		res = tx.First(&model)
		if res.Error != nil {
			return errors.Wrap(res.Error, "get model")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &model, nil
}

func (s *Bookmarks) Delete(userID, id uint64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		model := db.Bookmark{}
		res := tx.Where("user_id = ? AND id = ?", userID, id).First(&model)
		if res.Error != nil {
			if res.Error == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return res.Error
		}
		return tx.Delete(&model).Error
	})
}

func (s *Bookmarks) Stats(userID uint64) ([]BookmarkStats, error) {
	sql, args, err := squirrel.
		Select("id", "url", "short_url", "visits").
		From("bookmarks").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	stats := make([]BookmarkStats, 0)
	res := s.db.Raw(sql, args...).Scan(&stats)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan")
	}

	return stats, nil
}

// ResolveVisit looks up a bookmark by short code and counts the visit.
func (s *Bookmarks) ResolveVisit(code string) (*db.Bookmark, error) {
	model := db.Bookmark{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("short_url = ?", code).First(&model)
		if res.Error != nil {
			if res.Error == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return res.Error
		}
		return tx.Model(&model).UpdateColumn("visits", gorm.Expr("visits + 1")).Error
	})
	if err != nil {
		return nil, err
	}
	model.Visits++
	return &model, nil
}

func validateURL(rawURL string) error {
	if err := urlValidator.Var(rawURL, "required,url"); err != nil {
		return ErrInvalidURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}
