package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/umputun/jsn/pkg/domain"
)

// ArticleRepository handles article-related database operations
type ArticleRepository struct {
	db *sqlx.DB
}

// articleSQL represents an article row
type articleSQL struct {
	ID          int64          `db:"id"`
	Title       string         `db:"title"`
	Link        string         `db:"link"`
	PubDate     time.Time      `db:"pubDate"`
	Description sql.NullString `db:"description"`
	CollectedAt time.Time      `db:"collected_at"`
}

func (a articleSQL) toDomain() domain.Article {
	return domain.Article{
		ID:          a.ID,
		Title:       a.Title,
		Link:        a.Link,
		PubDate:     a.PubDate,
		Description: a.Description.String,
		CollectedAt: a.CollectedAt,
	}
}

// NewArticleRepository creates a new article repository on top of a provisioned connection
func NewArticleRepository(db *sqlx.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// ArticleExists checks if an article with the given link is already stored
func (r *ArticleRepository) ArticleExists(ctx context.Context, link string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM security_articles WHERE link = ?)", link)
	if err != nil {
		return false, fmt.Errorf("check article exists: %w", err)
	}
	return exists, nil
}

// CreateArticle inserts a new article and sets its ID.
// The publication date is written as wall-clock text in its own zone, second precision.
// Returns ErrDuplicateLink if the link is taken, including by a concurrent writer.
func (r *ArticleRepository) CreateArticle(ctx context.Context, article *domain.Article) error {
	query := `INSERT INTO security_articles (title, link, pubDate, description) VALUES (?, ?, ?, ?)`
	pubDate := article.PubDate.Format(domain.TimestampLayout)

	var insertErr error // not retried
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err := retrier.Do(ctx, func() error {
		res, err := r.db.ExecContext(ctx, query, article.Title, article.Link, pubDate, article.Description)
		if err != nil {
			if isLockError(err) {
				return err // repeater will retry this
			}
			insertErr = err
			return nil
		}
		id, err := res.LastInsertId()
		if err != nil {
			insertErr = fmt.Errorf("get last insert id: %w", err)
			return nil
		}
		article.ID = id
		return nil
	})

	if insertErr != nil {
		err = insertErr
	}
	if err != nil {
		if isDuplicateError(err) {
			return fmt.Errorf("create article %s: %w", article.Link, ErrDuplicateLink)
		}
		return fmt.Errorf("create article: %w", err)
	}
	return nil
}

// GetArticleByLink retrieves a stored article by its link
func (r *ArticleRepository) GetArticleByLink(ctx context.Context, link string) (*domain.Article, error) {
	var a articleSQL
	query := `SELECT id, title, link, pubDate, description, collected_at FROM security_articles WHERE link = ?`
	if err := r.db.GetContext(ctx, &a, query, link); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get article by link: %w", err)
	}
	res := a.toDomain()
	return &res, nil
}

// ListArticles returns stored articles in insertion order, limit <= 0 means no limit
func (r *ArticleRepository) ListArticles(ctx context.Context, limit int) ([]domain.Article, error) {
	query := `SELECT id, title, link, pubDate, description, collected_at FROM security_articles ORDER BY id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []articleSQL
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}

	res := make([]domain.Article, 0, len(rows))
	for _, a := range rows {
		res = append(res, a.toDomain())
	}
	return res, nil
}

// CountArticles returns the number of stored articles
func (r *ArticleRepository) CountArticles(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM security_articles"); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return count, nil
}
