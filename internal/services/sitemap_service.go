package services

import (
	"context"
	"encoding/xml"
	"strings"
	"time"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/bigyann/lumina/backend/pkg/storage"
	"go.uber.org/zap"
)

const (
	sitemapNS       = "http://www.sitemaps.org/schemas/sitemap/0.9"
	sitemapKey      = "sitemap.xml"
	sitemapMaxPosts = 5000
	sitemapMaxPolls = 1000
)

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// SitemapService renders the public sitemap.
type SitemapService struct {
	posts   repositories.PostRepository
	polls   repositories.PollRepository
	store   storage.BlobStore
	siteURL string
	log     *zap.Logger
}

// NewSitemapService creates a new SitemapService
func NewSitemapService(posts repositories.PostRepository, polls repositories.PollRepository, store storage.BlobStore, siteURL string, log *zap.Logger) *SitemapService {
	return &SitemapService{
		posts:   posts,
		polls:   polls,
		store:   store,
		siteURL: strings.TrimSuffix(siteURL, "/"),
		log:     log.Named("sitemap"),
	}
}

// Build renders the sitemap of the static pages, published posts and active
// polls.
func (s *SitemapService) Build(ctx context.Context) ([]byte, error) {
	set := urlSet{Xmlns: sitemapNS}
	for _, page := range []string{"", "/blog", "/polls", "/marketplace"} {
		set.URLs = append(set.URLs, sitemapURL{Loc: s.siteURL + page, ChangeFreq: "daily", Priority: "0.8"})
	}

	posts, _, err := s.posts.ListPosts(ctx, models.PostFilter{Status: models.PostPublished}, 0, sitemapMaxPosts)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        s.siteURL + "/blog/" + p.Slug,
			LastMod:    p.UpdatedAt.UTC().Format(time.DateOnly),
			ChangeFreq: "weekly",
			Priority:   "0.7",
		})
	}

	polls, err := s.polls.ListPolls(ctx, models.PollActive, 0, sitemapMaxPolls)
	if err != nil {
		return nil, err
	}
	for _, p := range polls {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        s.siteURL + "/polls/" + p.ID,
			LastMod:    p.UpdatedAt.UTC().Format(time.DateOnly),
			ChangeFreq: "daily",
			Priority:   "0.5",
		})
	}

	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

// Publish builds the sitemap and writes it to blob storage.
func (s *SitemapService) Publish(ctx context.Context) (string, error) {
	body, err := s.Build(ctx)
	if err != nil {
		return "", err
	}
	url, err := s.store.Put(ctx, sitemapKey, "application/xml", body)
	if err != nil {
		return "", err
	}
	s.log.Info("sitemap published", zap.String("url", url), zap.Int("bytes", len(body)))
	return url, nil
}
