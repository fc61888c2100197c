package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"tenantcrm/internal/metrics"
	"tenantcrm/internal/models"
	"tenantcrm/pkg/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCounter struct {
	mock.Mock
	resource models.Resource
}

func (m *MockCounter) Resource() models.Resource { return m.resource }

func (m *MockCounter) Count(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

func newCounter(r models.Resource, n int64, err error) *MockCounter {
	c := &MockCounter{resource: r}
	c.On("Count", mock.Anything, mock.Anything).Return(n, err)
	return c
}

func TestGetUsageCountsEveryResource(t *testing.T) {
	tenantID := uuid.New()
	counters := []Counter{
		newCounter(models.ResourceUsers, 3, nil),
		newCounter(models.ResourceLeads, 120, nil),
		newCounter(models.ResourceContacts, 40, nil),
		newCounter(models.ResourceDeals, 7, nil),
		newCounter(models.ResourceStorageMB, 12, nil),
	}
	m := NewMeter(logger.Nop(), counters)

	snap, err := m.GetUsage(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Empty(t, snap.Unknown)
	assert.Equal(t, int64(120), snap.Counts[models.ResourceLeads])
	assert.Equal(t, int64(12), snap.Counts[models.ResourceStorageMB])

	for _, c := range counters {
		c.(*MockCounter).AssertCalled(t, "Count", mock.Anything, tenantID)
	}
}

func TestGetUsageFailingCounterIsUnknownNotZero(t *testing.T) {
	mx := metrics.New(prometheus.NewRegistry())
	m := NewMeter(logger.Nop(), []Counter{
		newCounter(models.ResourceUsers, 3, nil),
		newCounter(models.ResourceLeads, 0, errors.New("lead store unavailable")),
	}, WithMetrics(mx))

	snap, err := m.GetUsage(context.Background(), uuid.New())
	require.NoError(t, err)

	_, known := snap.Count(models.ResourceLeads)
	assert.False(t, known)
	assert.Contains(t, snap.Unknown[models.ResourceLeads], "lead store unavailable")
	_, counted := snap.Counts[models.ResourceLeads]
	assert.False(t, counted)

	_, known = snap.Count(models.ResourceDeals)
	assert.False(t, known, "no counter registered")

	n, known := snap.Count(models.ResourceUsers)
	assert.True(t, known)
	assert.Equal(t, int64(3), n)
}

type slowCounter struct{ resource models.Resource }

func (s slowCounter) Resource() models.Resource { return s.resource }

func (s slowCounter) Count(ctx context.Context, _ uuid.UUID) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestGetUsageTimeoutMarksUnknown(t *testing.T) {
	m := NewMeter(logger.Nop(), []Counter{slowCounter{models.ResourceContacts}}, WithTimeout(10*time.Millisecond))

	snap, err := m.GetResourceUsage(context.Background(), uuid.New(), models.ResourceContacts)
	require.NoError(t, err)
	assert.Contains(t, snap.Unknown, models.ResourceContacts)
}

func TestGetUsageCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMeter(logger.Nop(), []Counter{slowCounter{models.ResourceContacts}})

	_, err := m.GetUsage(ctx, uuid.New())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTableCounter(t *testing.T) {
	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer db.Close()

	tenantID := uuid.New()
	db.ExpectQuery(`SELECT COUNT\(\*\) FROM "leads" WHERE tenant_id = \$1 AND deleted_at IS NULL`).
		WithArgs(tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

	n, err := NewTableCounter(db, models.ResourceLeads, "leads").Count(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, db.ExpectationsWereMet())
}

func TestTableCounterError(t *testing.T) {
	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer db.Close()

	db.ExpectQuery(`SELECT COUNT`).WillReturnError(errors.New("relation does not exist"))

	_, err = NewTableCounter(db, models.ResourceDeals, "deals").Count(context.Background(), uuid.New())
	assert.ErrorContains(t, err, "failed to count deals")
}

type fakeLister struct {
	objects []minio.ObjectInfo
	prefix  string
}

func (f *fakeLister) ListObjects(_ context.Context, _ string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	f.prefix = opts.Prefix
	ch := make(chan minio.ObjectInfo, len(f.objects))
	for _, o := range f.objects {
		ch <- o
	}
	close(ch)
	return ch
}

func TestStorageCounterRoundsUpToMB(t *testing.T) {
	tenantID := uuid.New()
	lister := &fakeLister{objects: []minio.ObjectInfo{
		{Key: "a", Size: bytesPerMB},
		{Key: "b", Size: 1},
	}}

	n, err := NewStorageCounter(lister, "crm").Count(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, TenantPrefix(tenantID), lister.prefix)
}

func TestStorageCounterListError(t *testing.T) {
	lister := &fakeLister{objects: []minio.ObjectInfo{{Err: errors.New("access denied")}}}

	_, err := NewStorageCounter(lister, "crm").Count(context.Background(), uuid.New())
	assert.ErrorContains(t, err, "access denied")
}
