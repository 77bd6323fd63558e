package reference

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLayouts = []string{time.DateOnly, "02/01/2006"}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  tienda a ", "TIENDA A"},
		{"Medellín", "MEDELLÍN"},
		{"Medelli\u0301n", "MEDELLÍN"}, // combining acute accent
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeKey(tt.in), "input %q", tt.in)
	}
}

func TestHolidaySet(t *testing.T) {
	set := NewHolidaySet(date(2024, 1, 1), time.Date(2024, 3, 25, 15, 0, 0, 0, time.UTC), time.Time{})
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains(date(2024, 1, 1)))
	assert.True(t, set.Contains(date(2024, 3, 25)))
	assert.False(t, set.Contains(date(2024, 3, 26)))

	var empty HolidaySet
	assert.False(t, empty.Contains(date(2024, 1, 1)))
	assert.Zero(t, empty.Len())
}

func TestChannelTable(t *testing.T) {
	tbl := NewChannelTable([]ChannelEntry{
		{Branch: " tienda a", Channel: "retail"},
		{Branch: "TIENDA A", Channel: "DIGITAL"}, // duplicate, first wins
		{Branch: "", Channel: "X"},
		{Branch: "TIENDA B", Channel: " "},
		{Branch: "Tienda Web", Channel: "Digital"},
	})
	assert.Equal(t, 2, tbl.Len())

	ch, ok := tbl.Lookup("Tienda A ")
	assert.True(t, ok)
	assert.Equal(t, "RETAIL", ch)

	ch, ok = tbl.Lookup("TIENDA WEB")
	assert.True(t, ok)
	assert.Equal(t, "DIGITAL", ch)

	_, ok = tbl.Lookup("TIENDA B")
	assert.False(t, ok)

	var empty ChannelTable
	_, ok = empty.Lookup("TIENDA A")
	assert.False(t, ok)
}

func TestLoadHolidaysFile(t *testing.T) {
	path := writeFile(t, "festivos.csv", "FECHA,NOMBRE\n2024-01-01,Año nuevo\n08/01/2024,Reyes\nbasura,x\n")

	set, err := LoadHolidaysFile(context.Background(), HolidaySource{Path: path}, testLayouts, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains(date(2024, 1, 8)))
}

func TestLoadHolidaysFile_FallsBackToFirstColumn(t *testing.T) {
	path := writeFile(t, "festivos.csv", "DIA\n2024-05-01\n")

	set, err := LoadHolidaysFile(context.Background(), HolidaySource{Path: path}, testLayouts, time.UTC)
	require.NoError(t, err)
	assert.True(t, set.Contains(date(2024, 5, 1)))
}

func TestLoadChannelsFile(t *testing.T) {
	path := writeFile(t, "sedes.csv", "SEDE,CANAL\nTienda A,Retail\nTIENDA MOTOS,MOTOS\n")

	tbl, err := LoadChannelsFile(context.Background(), ChannelSource{Path: path})
	require.NoError(t, err)
	ch, ok := tbl.Lookup("TIENDA A")
	assert.True(t, ok)
	assert.Equal(t, "RETAIL", ch)
}

func TestLoadChannelsFile_MissingColumn(t *testing.T) {
	path := writeFile(t, "sedes.csv", "SEDE,OTRO\nA,B\n")

	_, err := LoadChannelsFile(context.Background(), ChannelSource{Path: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no "CANAL" column`)
}

func TestLoader_MissingSourcesRecover(t *testing.T) {
	l := &Loader{Layouts: testLayouts, Location: time.UTC}
	ctx := context.Background()

	missing := filepath.Join(t.TempDir(), "nope.csv")
	assert.Zero(t, l.Holidays(ctx, HolidaySource{Path: missing}).Len())
	assert.Zero(t, l.Channels(ctx, ChannelSource{Path: missing}).Len())
	assert.Zero(t, l.Holidays(ctx, HolidaySource{}).Len())
	assert.Zero(t, l.Channels(ctx, ChannelSource{}).Len())
}

func TestLoader_QueryHolidays(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT fecha::text FROM ref.festivos").
		WillReturnRows(mock.NewRows([]string{"fecha"}).AddRow("2024-01-01").AddRow("2024-12-25"))

	l := &Loader{Pool: mock, Layouts: testLayouts, Location: time.UTC}
	set := l.Holidays(context.Background(), HolidaySource{Query: "SELECT fecha::text FROM ref.festivos"})
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains(date(2024, 12, 25)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoader_QueryChannels(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT sede, canal FROM ref.sede_canal").
		WillReturnRows(mock.NewRows([]string{"sede", "canal"}).AddRow("tienda a", "retail"))

	l := &Loader{Pool: mock}
	tbl := l.Channels(context.Background(), ChannelSource{Query: "SELECT sede, canal FROM ref.sede_canal"})
	ch, ok := tbl.Lookup("TIENDA A")
	assert.True(t, ok)
	assert.Equal(t, "RETAIL", ch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoader_QueryErrorRecovers(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT").WillReturnError(fmt.Errorf("relation does not exist"))

	l := &Loader{Pool: mock}
	tbl := l.Channels(context.Background(), ChannelSource{Query: "SELECT sede, canal FROM ref.sede_canal"})
	assert.Zero(t, tbl.Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}
