package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"

	"github.com/umputun/jsn/pkg/domain"
	"github.com/umputun/jsn/pkg/feed"
	"github.com/umputun/jsn/pkg/repository"
)

const eucKRFeed = `<?xml version="1.0" encoding="euc-kr"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
<title>보안뉴스</title>
<link>https://example.com</link>
<item><title>랜섬웨어 경보</title><link>https://example.com/news/1</link><description>첫 번째</description><dc:date>Mon, 02 Jan 2006 15:04:05 +0900</dc:date></item>
<item><title>제로데이 취약점</title><link>https://example.com/news/2</link><description>두 번째</description></item>
<item><link>https://example.com/news/3</link><dc:date>not a date</dc:date></item>
</channel>
</rss>`

const xxeFeed = `<?xml version="1.0"?>
<!DOCTYPE rss [ <!ENTITY xxe SYSTEM "file:///etc/passwd"> ]>
<rss version="2.0"><channel><title>x</title>
<item><title>&xxe;</title><link>https://example.com/leak</link></item>
</channel></rss>`

type testEnv struct {
	repo   *repository.ArticleRepository
	server *httptest.Server
	logs   *strings.Builder
	clock  time.Time
}

func newTestEnv(t *testing.T, handler http.HandlerFunc) *testEnv {
	t.Helper()
	p := repository.NewProvisioner(repository.Config{Driver: repository.DriverSQLite,
		Path: filepath.Join(t.TempDir(), "news.db")}, lgr.NoOp)
	db, err := p.Provision(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	return &testEnv{repo: repository.NewArticleRepository(db), server: ts, logs: &strings.Builder{},
		clock: time.Date(2025, 10, 19, 9, 0, 0, 0, time.UTC)}
}

func (e *testEnv) collector() *Collector {
	return New(Params{
		Store:  e.repo,
		Source: feed.NewHTTPFetcher(feed.FetcherParams{Timeout: 5 * time.Second, Attempts: 1}),
		Parser: feed.NewParser("euc-kr"),
		URL:    e.server.URL + "/rss.xml",
		Logger: captureLog(e.logs),
		Now:    func() time.Time { return e.clock },
	})
}

func serveEUCKR(t *testing.T, doc string) http.HandlerFunc {
	body, err := korean.EUCKR.NewEncoder().String(doc)
	require.NoError(t, err)
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml; charset=euc-kr")
		_, _ = w.Write([]byte(body))
	}
}

func TestCollector_Integration(t *testing.T) {
	ctx := context.Background()

	t.Run("new feed stores all items", func(t *testing.T) {
		env := newTestEnv(t, serveEUCKR(t, eucKRFeed))
		stats := env.collector().Collect(ctx)
		assert.Equal(t, Stats{Scanned: 3, Added: 3}, stats)

		articles, err := env.repo.ListArticles(ctx, 0)
		require.NoError(t, err)
		require.Len(t, articles, 3)
		assert.Equal(t, "랜섬웨어 경보", articles[0].Title)
		assert.Equal(t, "첫 번째", articles[0].Description)
		assert.Equal(t, "2006-01-02 15:04:05", articles[0].PubDate.Format(domain.TimestampLayout))
		assert.Equal(t, "2025-10-19 09:00:00", articles[1].PubDate.Format(domain.TimestampLayout))
		assert.Equal(t, domain.NoTitle, articles[2].Title)
		assert.Equal(t, "2025-10-19 09:00:00", articles[2].PubDate.Format(domain.TimestampLayout))
		assert.Contains(t, env.logs.String(), "3 new articles added and 3 scan finished")

		// unchanged feed adds nothing on the next pass
		stats = env.collector().Collect(ctx)
		assert.Equal(t, Stats{Scanned: 3, Skipped: 3}, stats)
		count, err := env.repo.CountArticles(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})

	t.Run("pre-existing links", func(t *testing.T) {
		env := newTestEnv(t, serveEUCKR(t, eucKRFeed))
		for _, link := range []string{"https://example.com/news/1", "https://example.com/news/3"} {
			require.NoError(t, env.repo.CreateArticle(ctx, &domain.Article{Title: "old", Link: link, PubDate: env.clock}))
		}

		stats := env.collector().Collect(ctx)
		assert.Equal(t, Stats{Scanned: 3, Added: 1, Skipped: 2}, stats)

		old, err := env.repo.GetArticleByLink(ctx, "https://example.com/news/1")
		require.NoError(t, err)
		assert.Equal(t, "old", old.Title, "existing rows are never updated")

		added, err := env.repo.GetArticleByLink(ctx, "https://example.com/news/2")
		require.NoError(t, err)
		assert.Equal(t, "제로데이 취약점", added.Title)
	})

	t.Run("not found status", func(t *testing.T) {
		env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})
		stats := env.collector().Collect(ctx)
		assert.Equal(t, Stats{}, stats)

		count, err := env.repo.CountArticles(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.Contains(t, env.logs.String(), "[ERROR] failed to fetch feed")
		assert.Contains(t, env.logs.String(), "404")
	})

	t.Run("external entity document", func(t *testing.T) {
		env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(xxeFeed))
		})
		stats := env.collector().Collect(ctx)
		assert.Equal(t, Stats{}, stats)

		count, err := env.repo.CountArticles(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.Contains(t, env.logs.String(), "[ERROR] failed to parse feed")
		assert.NotContains(t, env.logs.String(), "root:")
	})
}
