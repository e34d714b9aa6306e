package analytics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/geoinfer/metering/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	svc := NewService(db)
	require.NoError(t, svc.AutoMigrate())
	return svc, db
}

func usageRecord(orgID string, credits int64, usageType models.UsageType, createdAt time.Time) models.UsageRecord {
	return models.UsageRecord{
		ID:              uuid.NewString(),
		OrganizationID:  orgID,
		CreditsConsumed: credits,
		UsageType:       usageType,
		OperationType:   models.OperationConsumption,
		CreatedAt:       createdAt,
	}
}

func TestMirrorRecordsIdempotent(t *testing.T) {
	svc, db := newTestService(t)
	orgID := uuid.NewString()

	records := []models.UsageRecord{
		usageRecord(orgID, 10, models.UsageTypeGlobal, time.Now().UTC()),
		usageRecord(orgID, 5, models.UsageTypeAccuracy, time.Now().UTC()),
	}

	require.NoError(t, svc.MirrorRecords(context.Background(), records))
	// Replayed submissions must not duplicate rows.
	require.NoError(t, svc.MirrorRecords(context.Background(), records))

	var count int64
	require.NoError(t, db.Model(&models.UsageRecord{}).
		Where("organization_id = ?", orgID).
		Count(&count).Error)
	assert.Equal(t, int64(2), count)

	require.NoError(t, svc.MirrorRecords(context.Background(), nil))
}

func TestUsageTimeseriesGroupsByDay(t *testing.T) {
	svc, _ := newTestService(t)
	orgID := uuid.NewString()
	now := time.Now().UTC()

	today := []models.UsageRecord{
		usageRecord(orgID, 10, models.UsageTypeGlobal, now.Add(-1*time.Hour)),
		usageRecord(orgID, 7, models.UsageTypeGlobal, now.Add(-2*time.Hour)),
	}
	yesterday := []models.UsageRecord{
		usageRecord(orgID, 3, models.UsageTypeGlobal, now.AddDate(0, 0, -1)),
	}
	ancient := []models.UsageRecord{
		usageRecord(orgID, 100, models.UsageTypeGlobal, now.AddDate(0, 0, -90)),
	}
	require.NoError(t, svc.MirrorRecords(context.Background(), today))
	require.NoError(t, svc.MirrorRecords(context.Background(), yesterday))
	require.NoError(t, svc.MirrorRecords(context.Background(), ancient))

	points, err := svc.UsageTimeseries(context.Background(), orgID, 30)
	require.NoError(t, err)
	require.Len(t, points, 2)

	// Oldest day first; the record outside the window is excluded.
	assert.Equal(t, int64(3), points[0].Credits)
	assert.Equal(t, int64(1), points[0].Requests)
	assert.Equal(t, int64(17), points[1].Credits)
	assert.Equal(t, int64(2), points[1].Requests)
}

func TestUsageByType(t *testing.T) {
	svc, _ := newTestService(t)
	orgID := uuid.NewString()
	now := time.Now().UTC()

	records := []models.UsageRecord{
		usageRecord(orgID, 10, models.UsageTypeGlobal, now),
		usageRecord(orgID, 5, models.UsageTypeAccuracy, now),
		usageRecord(orgID, 2, models.UsageTypeAccuracy, now),
	}
	require.NoError(t, svc.MirrorRecords(context.Background(), records))

	breakdown, err := svc.UsageByType(context.Background(), orgID, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(10), breakdown[models.UsageTypeGlobal])
	assert.Equal(t, int64(7), breakdown[models.UsageTypeAccuracy])
	assert.NotContains(t, breakdown, models.UsageTypeCars)
}

func TestWorkerMirrorsSubmittedRecords(t *testing.T) {
	svc, db := newTestService(t)
	orgID := uuid.NewString()

	worker := NewWorker(svc, 1, 16)
	worker.Submit([]models.UsageRecord{
		usageRecord(orgID, 12, models.UsageTypeGlobal, time.Now().UTC()),
	})

	require.Eventually(t, func() bool {
		var count int64
		if err := db.Model(&models.UsageRecord{}).
			Where("organization_id = ?", orgID).
			Count(&count).Error; err != nil {
			return false
		}
		return count == 1
	}, 2*time.Second, 10*time.Millisecond)

	worker.Stop()

	// Submissions after Stop are dropped, not queued.
	worker.Submit([]models.UsageRecord{
		usageRecord(orgID, 99, models.UsageTypeGlobal, time.Now().UTC()),
	})

	var count int64
	require.NoError(t, db.Model(&models.UsageRecord{}).
		Where("organization_id = ?", orgID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
