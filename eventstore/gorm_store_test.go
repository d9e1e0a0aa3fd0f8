package eventstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/models"
)

func newDryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=portal dbname=portal sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return db
}

func TestFailedEventsQueryLimit(t *testing.T) {
	db := newDryRunDB(t)

	tests := []struct {
		name      string
		limit     int
		wantLimit bool
	}{
		{"zero lists all", 0, false},
		{"negative lists all", -1, false},
		{"positive is bounded", 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
				var rows []models.Event
				return failedEventsQuery(tx, tt.limit).Find(&rows)
			})
			assert.Contains(t, sql, "failed = true")
			assert.Contains(t, sql, "ORDER BY id ASC")
			if tt.wantLimit {
				assert.Contains(t, sql, "LIMIT 5")
			} else {
				assert.NotContains(t, sql, "LIMIT")
			}
		})
	}
}

func TestMemoryStoreListsAllFailedEventsWithoutLimit(t *testing.T) {
	ctx := context.Background()
	repo, store := newTestRepository()

	newLanguage(t, repo, "en")
	newLanguage(t, repo, "fr")

	pending, err := store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, event := range pending {
		require.NoError(t, store.MarkEventAsFailed(ctx, event.ID, "broken", true))
	}

	failed, err := store.GetFailedEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, domain.LanguageCreated, failed[0].Type)

	failed, err = store.GetFailedEvents(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, failed, 1)
}
