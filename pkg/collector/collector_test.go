package collector_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/freelaudit/pkg/collector"
	"github.com/Sumatoshi-tech/freelaudit/pkg/profile"
)

var errBlocked = errors.New("blocked")

type fakeSource struct {
	listings     map[string][]string
	failProfile  string
	profileCalls []string
}

func (f *fakeSource) LanguageListingURL(lang string, page int) string {
	return fmt.Sprintf("lang:%s:%d", lang, page)
}

func (f *fakeSource) TechnologyListingURL(lang, tech string, page int) string {
	return fmt.Sprintf("tech:%s:%s:%d", tech, lang, page)
}

func (f *fakeSource) ListingLinks(_ context.Context, pageURL string) ([]string, error) {
	return f.listings[pageURL], nil
}

func (f *fakeSource) Profile(_ context.Context, profileURL string) (profile.Profile, error) {
	f.profileCalls = append(f.profileCalls, profileURL)

	if profileURL == f.failProfile {
		return profile.Profile{}, errBlocked
	}

	return profile.Profile{URL: profileURL, GitHub: "https://github.com/" + profileURL, Name: "n"}, nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func newSource() *fakeSource {
	return &fakeSource{listings: map[string][]string{
		"lang:en:1":              {"alice", "bob"},
		"lang:en:2":              {"bob", "carol"},
		"lang:pt:1":              {"alice", "dave"},
		"tech:python:en:1":       {"erin", "carol"},
		"tech:python:pt:2":       {"frank"},
		"tech:javascript:pt:2":   {"frank", "grace"},
		"tech:javascript:en:404": {"never"},
	}}
}

func testConfig(t *testing.T) collector.Config {
	t.Helper()

	return collector.Config{
		TablePath:    filepath.Join(t.TempDir(), "profiles.csv"),
		Languages:    []string{"en", "pt"},
		Technologies: []string{"python", "javascript"},
		Pages:        2,
	}
}

func TestCollector_RunDedupsAcrossPasses(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	src := newSource()

	res, err := collector.New(cfg, src, collector.WithSleep(noSleep)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob", "carol", "dave", "erin", "frank", "grace"}, src.profileCalls)
	assert.Len(t, res.NewProfiles, 7)
	assert.Equal(t, 12, res.ListingPages)
	assert.Equal(t, 7, res.TotalAfterRun)

	stored, err := profile.ReadTable(cfg.TablePath)
	require.NoError(t, err)
	require.Len(t, stored, 7)
	assert.Equal(t, "alice", stored[0].URL)
}

func TestCollector_SecondRunIsIdempotent(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	_, err := collector.New(cfg, newSource(), collector.WithSleep(noSleep)).Run(context.Background())
	require.NoError(t, err)

	src := newSource()

	res, err := collector.New(cfg, src, collector.WithSleep(noSleep)).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, src.profileCalls)
	assert.Empty(t, res.NewProfiles)
	assert.Equal(t, 7, res.Existing)

	stored, err := profile.ReadTable(cfg.TablePath)
	require.NoError(t, err)
	assert.Len(t, stored, 7)
}

func TestCollector_ProfileErrorAbortsWithoutWriting(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	src := newSource()
	src.failProfile = "carol"

	_, err := collector.New(cfg, src, collector.WithSleep(noSleep)).Run(context.Background())
	require.ErrorIs(t, err, errBlocked)

	stored, err := profile.ReadTable(cfg.TablePath)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestCollector_CancelledDuringPause(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cancelled := errors.New("cancelled")

	_, err := collector.New(cfg, newSource(), collector.WithSleep(func(context.Context, time.Duration) error {
		return cancelled
	})).Run(context.Background())

	require.ErrorIs(t, err, cancelled)
}
