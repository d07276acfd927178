package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS pathfinder_events").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, NewAuditLog(db).EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLogRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO pathfinder_events").
		WithArgs(KindLink, "L1", "accepted", ts, ts.Add(time.Second)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO pathfinder_events").
		WithArgs(KindTopology, "", "stale", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	audit := NewAuditLog(db)
	require.NoError(t, audit.Record(context.Background(), Entry{
		Kind: KindLink, Entity: "L1", Outcome: "accepted", EventTime: ts, RecordedAt: ts.Add(time.Second),
	}))
	err = audit.Record(context.Background(), Entry{Kind: KindTopology, Outcome: "stale", EventTime: ts, RecordedAt: ts})
	assert.ErrorContains(t, err, "connection reset")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLogRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"kind", "entity", "outcome", "event_time", "recorded_at"}).
		AddRow(KindLink, "L2", "stale", ts, ts.Add(2*time.Second)).
		AddRow(KindTopology, "", "accepted", ts, ts.Add(time.Second))
	mock.ExpectQuery("^SELECT (.+) FROM pathfinder_events(.*)$").WithArgs(2).WillReturnRows(rows)

	entries, err := NewAuditLog(db).Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Kind: KindLink, Entity: "L2", Outcome: "stale", EventTime: ts, RecordedAt: ts.Add(2 * time.Second)}, entries[0])
	assert.Equal(t, KindTopology, entries[1].Kind)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLogRecentQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("^SELECT (.+) FROM pathfinder_events(.*)$").WillReturnError(errors.New("no table"))

	_, err = NewAuditLog(db).Recent(context.Background(), 5)
	assert.ErrorContains(t, err, "no table")
	assert.NoError(t, mock.ExpectationsWereMet())
}
