package services

import (
	"bytes"
	"context"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/bigyann/lumina/backend/pkg/metrics"
	"github.com/bigyann/lumina/backend/pkg/storage"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUploadStoresUnderRandomizedKey(t *testing.T) {
	store := storage.NewMemoryStore("https://blob.test")
	svc := NewUploadService(store, metrics.New(), 1<<20, 100, zap.NewNop())
	ctx := context.Background()

	url, err := svc.Upload(ctx, "notes.txt", "", []byte("hello"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "https://blob.test/uploads/notes-"))
	assert.True(t, strings.HasSuffix(url, ".txt"))

	obj, ok := store.Get(strings.TrimPrefix(url, "https://blob.test/"))
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), obj.Data)
	assert.Contains(t, obj.ContentType, "text/plain")

	_, err = svc.Upload(ctx, "  ", "", []byte("x"))
	assert.ErrorIs(t, err, ErrMissingFilename)
	_, err = svc.Upload(ctx, "big.bin", "", make([]byte, 2<<20))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestUploadDownscalesLargeImages(t *testing.T) {
	store := storage.NewMemoryStore("https://blob.test")
	svc := NewUploadService(store, metrics.New(), 10<<20, 100, zap.NewNop())

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(400, 200, color.White), imaging.PNG))

	url, err := svc.Upload(context.Background(), "banner.png", "image/png", buf.Bytes())
	require.NoError(t, err)

	obj, ok := store.Get(strings.TrimPrefix(url, "https://blob.test/"))
	require.True(t, ok)
	img, err := imaging.Decode(bytes.NewReader(obj.Data))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

// listedPosts serves a fixed post list; other methods are not used.
type listedPosts struct {
	repositories.PostRepository
	posts []models.Post
}

func (p *listedPosts) ListPosts(_ context.Context, filter models.PostFilter, _, _ int64) ([]models.Post, int64, error) {
	var out []models.Post
	for _, post := range p.posts {
		if filter.Status == "" || post.Status == filter.Status {
			out = append(out, post)
		}
	}
	return out, int64(len(out)), nil
}

func TestSitemapListsPublishedContent(t *testing.T) {
	updated := time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC)
	posts := &listedPosts{posts: []models.Post{
		{ID: "1", Slug: "hello-world", Status: models.PostPublished, UpdatedAt: updated},
		{ID: "2", Slug: "secret-draft", Status: models.PostDraft, UpdatedAt: updated},
	}}
	polls := repositories.NewInMemoryPollRepository()
	require.NoError(t, polls.CreatePoll(context.Background(), &models.Poll{ID: "p1", Status: models.PollActive, UpdatedAt: updated}))
	require.NoError(t, polls.CreatePoll(context.Background(), &models.Poll{ID: "p2", Status: models.PollClosed, UpdatedAt: updated}))

	store := storage.NewMemoryStore("https://blob.test")
	svc := NewSitemapService(posts, polls, store, "https://lumina.blog/", zap.NewNop())

	body, err := svc.Build(context.Background())
	require.NoError(t, err)
	xml := string(body)
	assert.Contains(t, xml, `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	assert.Contains(t, xml, "<loc>https://lumina.blog/blog/hello-world</loc>")
	assert.Contains(t, xml, "<lastmod>2024-06-02</lastmod>")
	assert.Contains(t, xml, "<loc>https://lumina.blog/polls/p1</loc>")
	assert.NotContains(t, xml, "secret-draft")
	assert.NotContains(t, xml, "polls/p2")

	url, err := svc.Publish(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://blob.test/sitemap.xml", url)
	obj, ok := store.Get("sitemap.xml")
	require.True(t, ok)
	assert.Equal(t, "application/xml", obj.ContentType)
}
