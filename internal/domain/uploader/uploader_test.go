package uploader

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weni-ai/catalog-sync/internal/clients/catalogapi"
	"github.com/weni-ai/catalog-sync/internal/domain/models"
	"github.com/weni-ai/catalog-sync/internal/testutil"
)

type fakeItems struct {
	chunks    [][]*models.ProductRecord
	failIndex int // индекс пакета, который должен упасть; -1 без падений
}

func (f *fakeItems) BatchUpdate(ctx context.Context, externalCatalogID string, records []*models.ProductRecord) error {
	index := len(f.chunks)
	f.chunks = append(f.chunks, records)
	if index == f.failIndex {
		return errors.New("batch rejected")
	}
	return nil
}

type fakeFeeds struct {
	uploaded     []byte
	pollsToReady int
	polls        int
}

func (f *fakeFeeds) Create(ctx context.Context, externalCatalogID, name string) (string, error) {
	return "feed-1", nil
}

func (f *fakeFeeds) Upload(ctx context.Context, feedID string, contents []byte) (string, error) {
	f.uploaded = contents
	return "upload-1", nil
}

func (f *fakeFeeds) GetUploadStatus(ctx context.Context, feedID string) (*catalogapi.FeedUploadStatus, error) {
	f.polls++
	if f.polls >= f.pollsToReady {
		return &catalogapi.FeedUploadStatus{ID: "upload-1", EndTime: "2026-01-01T00:00:00+0000"}, nil
	}
	return &catalogapi.FeedUploadStatus{ID: "upload-1"}, nil
}

func makeRecords(n int) []*models.ProductRecord {
	records := make([]*models.ProductRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, &models.ProductRecord{
			ID:           "sku-" + string(rune('a'+i%26)),
			Title:        "Produto",
			Availability: models.AvailabilityInStock,
			Status:       models.StatusActive,
			Condition:    "new",
			Price:        "10.00 BRL",
			ListPrice:    "12.00 BRL",
			Link:         "https://store.example.com/p/1",
			ImageLink:    "https://img.example.com/1.jpg",
			Brand:        "Acme",
		})
	}
	return records
}

func TestUploadIncrementalChunks(t *testing.T) {
	items := &fakeItems{failIndex: -1}
	u := NewUploader(items, &fakeFeeds{}, 10, testutil.NewNopLogger())

	err := u.UploadIncremental(context.Background(), "cat-1", makeRecords(25))
	require.NoError(t, err)

	require.Len(t, items.chunks, 3)
	assert.Len(t, items.chunks[0], 10)
	assert.Len(t, items.chunks[1], 10)
	assert.Len(t, items.chunks[2], 5)
}

func TestUploadIncrementalContinuesPastFailedChunk(t *testing.T) {
	items := &fakeItems{failIndex: 1}
	u := NewUploader(items, &fakeFeeds{}, 10, testutil.NewNopLogger())

	err := u.UploadIncremental(context.Background(), "cat-1", makeRecords(25))

	// упавший пакет не мешает отправке остальных
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 chunks failed")
	assert.Len(t, items.chunks, 3)
}

func TestUploadIncrementalEmptyBatch(t *testing.T) {
	items := &fakeItems{failIndex: -1}
	u := NewUploader(items, &fakeFeeds{}, 10, testutil.NewNopLogger())

	require.NoError(t, u.UploadIncremental(context.Background(), "cat-1", nil))
	assert.Empty(t, items.chunks)
}

func TestUploadFeedWaitsForCompletion(t *testing.T) {
	feeds := &fakeFeeds{pollsToReady: 2}
	u := NewUploader(&fakeItems{failIndex: -1}, feeds, 0, testutil.NewNopLogger())
	u.feedTimeout = 5 * time.Second
	u.pollInitial = time.Millisecond
	u.pollCeiling = 2 * time.Millisecond

	err := u.UploadFeed(context.Background(), "cat-1", "catalog products", makeRecords(2))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, feeds.polls, 2)

	lines := strings.Split(strings.TrimSpace(string(feeds.uploaded)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(feedHeader, ","), lines[0])
}

func TestUploadFeedTimesOut(t *testing.T) {
	feeds := &fakeFeeds{pollsToReady: 1 << 30}
	u := NewUploader(&fakeItems{failIndex: -1}, feeds, 0, testutil.NewNopLogger())
	u.feedTimeout = 50 * time.Millisecond
	u.pollInitial = time.Millisecond
	u.pollCeiling = 2 * time.Millisecond

	err := u.UploadFeed(context.Background(), "cat-1", "catalog products", makeRecords(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not confirmed within")
}
