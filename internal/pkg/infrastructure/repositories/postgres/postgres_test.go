package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"
	"github.com/pashagolub/pgxmock/v4"
)

func TestStatementsAreBuiltFromColumns(t *testing.T) {
	is := is.New(t)

	rt, err := NewRecordTable("devices", "id", []string{"id", "name", "active"})
	is.NoErr(err)

	is.Equal(rt.getSQL, `SELECT "id"::text, "name"::text, "active"::text FROM "devices" WHERE "id" = $1`)
	is.Equal(rt.selectSQL, `SELECT "id"::text, "name"::text, "active"::text FROM "devices" ORDER BY "id"`)
	is.Equal(rt.upsertSQL, `INSERT INTO "devices" ("id", "name", "active") VALUES ($1, $2, $3) ON CONFLICT ("id") DO UPDATE SET "name" = EXCLUDED."name", "active" = EXCLUDED."active"`)
	is.Equal(rt.createTable(), `CREATE TABLE IF NOT EXISTS "devices" ("id" TEXT NOT NULL, "name" TEXT, "active" TEXT, PRIMARY KEY ("id"))`)
}

func TestIDColumnMustBeAColumn(t *testing.T) {
	is := is.New(t)

	_, err := NewRecordTable("devices", "key", []string{"id", "name"})
	is.True(err != nil)
}

func TestMissingFieldsAreStoredAsNull(t *testing.T) {
	is, rt, mock := testSetup(t, "id", "name", "active")

	mock.ExpectExec(rt.upsertSQL).
		WithArgs("d1", nil, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := rt.Save(context.Background(), "d1", map[string]string{"id": "ignored", "active": ""})

	is.NoErr(err)
	is.NoErr(mock.ExpectationsWereMet())
}

func TestSaveFailureIsReturned(t *testing.T) {
	is, rt, mock := testSetup(t, "id", "name")
	errDown := errors.New("database is down")

	mock.ExpectExec(rt.upsertSQL).WithArgs("d1", "sensor").WillReturnError(errDown)

	err := rt.Save(context.Background(), "d1", map[string]string{"name": "sensor"})

	is.True(errors.Is(err, errDown))
	is.NoErr(mock.ExpectationsWereMet())
}

func TestNullColumnsAreAbsentFields(t *testing.T) {
	is, rt, mock := testSetup(t, "id", "name", "active")

	mock.ExpectQuery(rt.getSQL).
		WithArgs("d1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "active"}).AddRow(strPtr("d1"), strPtr("sensor"), nil))

	record, found, err := rt.Get(context.Background(), "d1")

	is.NoErr(err)
	is.True(found)
	is.Equal(record, map[string]string{"id": "d1", "name": "sensor"})
	is.NoErr(mock.ExpectationsWereMet())
}

func TestMissingRowIsNotFound(t *testing.T) {
	is, rt, mock := testSetup(t, "id")

	mock.ExpectQuery(rt.getSQL).WithArgs("d1").WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, found, err := rt.Get(context.Background(), "d1")

	is.NoErr(err)
	is.True(!found)
	is.NoErr(mock.ExpectationsWereMet())
}

func TestListReturnsAllRecords(t *testing.T) {
	is, rt, mock := testSetup(t, "id", "name")

	mock.ExpectQuery(rt.selectSQL).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).
			AddRow(strPtr("d1"), strPtr("first")).
			AddRow(strPtr("d2"), nil))

	records, err := rt.List(context.Background())

	is.NoErr(err)
	is.Equal(records, []map[string]string{{"id": "d1", "name": "first"}, {"id": "d2"}})
	is.NoErr(mock.ExpectationsWereMet())
}

func TestInitializeCreatesTableAndColumns(t *testing.T) {
	is := is.New(t)

	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	is.NoErr(err)
	defer mock.Close()

	rt, _ := NewRecordTable("devices", "id", []string{"id", "name"})

	mock.ExpectExec(rt.createTable()).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(`ALTER TABLE "devices" ADD COLUMN IF NOT EXISTS "id" TEXT`).WillReturnResult(pgxmock.NewResult("ALTER TABLE", 0))
	mock.ExpectExec(`ALTER TABLE "devices" ADD COLUMN IF NOT EXISTS "name" TEXT`).WillReturnResult(pgxmock.NewResult("ALTER TABLE", 0))

	is.NoErr(rt.Initialize(context.Background(), mock))
	is.NoErr(mock.ExpectationsWereMet())
}

func testSetup(t *testing.T, columns ...string) (*is.I, *RecordTable, pgxmock.PgxPoolIface) {
	is := is.New(t)

	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	is.NoErr(err)
	t.Cleanup(mock.Close)

	rt, err := NewRecordTable("devices", "id", columns)
	is.NoErr(err)
	rt.db = mock

	return is, rt, mock
}

func strPtr(s string) *string {
	return &s
}
