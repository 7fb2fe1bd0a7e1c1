package services_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"msgsort/internal/models"
	"msgsort/internal/services"
	"msgsort/internal/store"
	"msgsort/internal/store/sqlite"
	"msgsort/pkg/categorizer"
)

type fixture struct {
	store      *sqlite.Store
	categories *services.CategoryService
	messages   *services.MessageService
	stats      *services.StatsService
	export     *services.ExportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(st.Close)

	c, err := categorizer.New(categorizer.DefaultConfig())
	require.NoError(t, err)

	cs := services.NewCategoryService(st, categorizer.NewRegistry(), "", nil)
	return &fixture{
		store:      st,
		categories: cs,
		messages:   services.NewMessageService(st, cs, c, nil),
		stats:      services.NewStatsService(st),
		export:     services.NewExportService(cs),
	}
}

func list(t *testing.T, cs *services.CategoryService) []categorizer.Category {
	t.Helper()
	cats, err := cs.ListCategories(context.Background())
	require.NoError(t, err)
	return cats
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.categories.AddCategory(ctx, "trabajo", []string{"reunión", "Oficina"})
	require.NoError(t, err)
	_, err = f.categories.AddCategory(ctx, "ocio", []string{"cine", "playa"})
	require.NoError(t, err)
}

func TestCategoryService_AddAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	cats := list(t, f.categories)
	require.Len(t, cats, 2)
	assert.Equal(t, []string{"reunion", "oficina"}, cats[0].Keywords)

	row, err := f.store.GetCategoryByName(ctx, "trabajo")
	require.NoError(t, err)
	assert.Equal(t, []string{"reunion", "oficina"}, row.Keywords)

	_, err = f.categories.AddCategory(ctx, "Trabajo", []string{"otra"})
	assert.ErrorIs(t, err, categorizer.ErrDuplicateCategory)

	require.NoError(t, f.categories.DeleteCategory(ctx, "TRABAJO"))
	assert.ErrorIs(t, f.categories.DeleteCategory(ctx, "trabajo"), categorizer.ErrCategoryNotFound)
	_, err = f.store.GetCategoryByName(ctx, "trabajo")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Len(t, list(t, f.categories), 1)
}

func TestCategoryService_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	testCases := []struct {
		name     string
		category string
		keywords []string
		want     error
	}{
		{"empty name", "", []string{"a"}, categorizer.ErrInvalidCategory},
		{"spaces in name", "mi categoria", []string{"a"}, categorizer.ErrInvalidCategory},
		{"symbols in name", "caf$", []string{"a"}, categorizer.ErrInvalidCategory},
		{"name too long", strings.Repeat("x", 101), []string{"a"}, categorizer.ErrInvalidCategory},
		{"no keywords", "vacia", []string{" ", ""}, categorizer.ErrInvalidCategory},
		{"default name", "SIN_CATEGORIA", []string{"a"}, services.ErrReservedCategory},
		{"comma in keyword", "ocio", []string{"cine, teatro"}, categorizer.ErrInvalidCategory},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.categories.AddCategory(ctx, tc.category, tc.keywords)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, list(t, f.categories))
	assert.ErrorIs(t, f.categories.DeleteCategory(ctx, "sin_categoria"), services.ErrReservedCategory)
}

func TestCategoryService_Load(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	fresh := services.NewCategoryService(f.store, categorizer.NewRegistry(), "", nil)
	n, err := fresh.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, list(t, f.categories), list(t, fresh))
}

type mockCategoryStore struct {
	mock.Mock
}

func (m *mockCategoryStore) CreateCategory(ctx context.Context, c *models.Category) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCategoryStore) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	args := m.Called(ctx, name)
	c, _ := args.Get(0).(*models.Category)
	return c, args.Error(1)
}

func (m *mockCategoryStore) ListCategories(ctx context.Context) ([]*models.Category, error) {
	args := m.Called(ctx)
	c, _ := args.Get(0).([]*models.Category)
	return c, args.Error(1)
}

func (m *mockCategoryStore) DeleteCategory(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockCategoryStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestCategoryService_StoreFailureLeavesRegistryUntouched(t *testing.T) {
	ctx := context.Background()
	ms := new(mockCategoryStore)
	ms.On("CreateCategory", mock.Anything, mock.Anything).Return(errors.New("connection refused")).Once()
	ms.On("CreateCategory", mock.Anything, mock.Anything).Return(store.ErrDuplicate).Once()
	ms.On("ListCategories", mock.Anything).Return([]*models.Category{}, nil)

	cs := services.NewCategoryService(ms, categorizer.NewRegistry(), "", nil)

	_, err := cs.AddCategory(ctx, "trabajo", []string{"reunion"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Empty(t, list(t, cs))

	_, err = cs.AddCategory(ctx, "trabajo", []string{"reunion"})
	assert.ErrorIs(t, err, categorizer.ErrDuplicateCategory)
	assert.Empty(t, list(t, cs))
	ms.AssertExpectations(t)
}

func TestCategoryService_ReadsSeeOtherWriters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	// another process working on the same table
	other := services.NewCategoryService(f.store, categorizer.NewRegistry(), "", nil)
	require.NoError(t, other.DeleteCategory(ctx, "trabajo"))
	_, err := other.AddCategory(ctx, "compras", []string{"pan"})
	require.NoError(t, err)

	names := func() []string {
		var out []string
		for _, c := range list(t, f.categories) {
			out = append(out, c.Name)
		}
		return out
	}
	assert.Equal(t, []string{"ocio", "compras"}, names())

	res, err := f.messages.Classify(ctx, "tenemos una reunion")
	require.NoError(t, err)
	assert.Equal(t, categorizer.DefaultCategoryName, res.Category)
	res, err = f.messages.Classify(ctx, "comprar pan")
	require.NoError(t, err)
	assert.Equal(t, "compras", res.Category)
}

func TestCategoryService_RefreshInterval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	cached := services.NewCategoryService(f.store, categorizer.NewRegistry(), "", nil)
	cached.SetRefreshInterval(time.Hour)
	require.Len(t, list(t, cached), 2)

	// reads inside the interval use the loaded copy
	require.NoError(t, f.categories.DeleteCategory(ctx, "ocio"))
	assert.Len(t, list(t, cached), 2)

	// writes are checked against the table and resync the copy
	assert.ErrorIs(t, cached.DeleteCategory(ctx, "ocio"), categorizer.ErrCategoryNotFound)
	assert.Len(t, list(t, cached), 1)

	_, err := f.categories.AddCategory(ctx, "compras", []string{"pan"})
	require.NoError(t, err)
	_, err = cached.AddCategory(ctx, "Compras", []string{"leche"})
	assert.ErrorIs(t, err, categorizer.ErrDuplicateCategory)
	assert.Len(t, list(t, cached), 2)
}

func TestCategoryService_Import(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	report, err := f.categories.ImportCategories(ctx, []categorizer.Category{
		{Name: "compras", Keywords: []string{"pan", "leche"}},
		{Name: "ocio", Keywords: []string{"teatro"}},
		{Name: "mal nombre", Keywords: []string{"x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"compras"}, report.Added)
	assert.Contains(t, report.Skipped, "ocio")
	assert.Contains(t, report.Skipped, "mal nombre")
	assert.Len(t, list(t, f.categories), 3)
}

func TestMessageService_Ingest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	msg := &models.Message{ChatID: 5, UserID: 9, ChatType: models.ChatTypePrivate, Text: "Mañana hay REUNIÓN"}
	res, err := f.messages.Ingest(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, "trabajo", res.Category)
	assert.Equal(t, categorizer.MethodExact, res.Method)
	assert.NotZero(t, msg.ID)
	assert.Equal(t, "trabajo", msg.Category)
	require.NotNil(t, msg.ConfidenceScore)
	assert.Equal(t, 1.0, *msg.ConfidenceScore)
	require.NotNil(t, msg.MatchedKeyword)
	assert.Equal(t, "reunion", *msg.MatchedKeyword)

	other := &models.Message{ChatID: 5, UserID: 9, Text: "comprar pan"}
	res, err = f.messages.Ingest(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, categorizer.DefaultCategoryName, res.Category)
	assert.Equal(t, models.ChatTypeAPI, other.ChatType)
	assert.Nil(t, other.MatchedKeyword)

	stats, err := f.stats.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Total)
	assert.Len(t, stats.Categories, 2)
}

func TestMessageService_IngestRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.messages.Ingest(ctx, &models.Message{Text: "hola"})
	assert.ErrorIs(t, err, services.ErrNoCategories)

	f.seed(t)
	_, err = f.messages.Ingest(ctx, &models.Message{Text: "   "})
	assert.ErrorIs(t, err, models.ErrValidation)

	total, err := f.store.CountMessages(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestMessageService_ClassifyAndExplain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res, err := f.messages.Classify(ctx, "reunion")
	require.NoError(t, err)
	assert.Equal(t, categorizer.DefaultCategoryName, res.Category)

	f.seed(t)
	res, err = f.messages.Classify(ctx, "reunio hoy")
	require.NoError(t, err)
	assert.Equal(t, "trabajo", res.Category)
	assert.Equal(t, categorizer.MethodFuzzy, res.Method)

	scores, err := f.messages.Explain(ctx, "vamos a la playa")
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "ocio", scores[0].Category)
}

func TestStatsService_Empty(t *testing.T) {
	f := newFixture(t)
	stats, err := f.stats.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.NotNil(t, stats.Categories)
	assert.Empty(t, stats.Categories)
}

func TestExport_CSV(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var buf bytes.Buffer
	require.NoError(t, f.export.Export(context.Background(), &buf, services.FormatCSV))
	assert.Equal(t, "name,keywords\ntrabajo,\"reunion, oficina\"\nocio,\"cine, playa\"\n", buf.String())

	cats, err := services.ReadCategoriesCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, []categorizer.Category{
		{Name: "trabajo", Keywords: []string{"reunion", "oficina"}},
		{Name: "ocio", Keywords: []string{"cine", "playa"}},
	}, cats)
}

func TestExport_XLSXRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var buf bytes.Buffer
	require.NoError(t, f.export.Export(context.Background(), &buf, services.FormatXLSX))

	cats, err := services.ReadCategoriesXLSX(&buf)
	require.NoError(t, err)
	assert.Equal(t, list(t, f.categories), cats)
}

func TestExport_Import(t *testing.T) {
	f := newFixture(t)
	in := "name,keywords\ncompras,\"pan, leche\"\n\nsalud, \"medico\"\n"

	report, err := f.export.Import(context.Background(), strings.NewReader(in), services.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"compras", "salud"}, report.Added)
	assert.Equal(t, "leche", list(t, f.categories)[0].Keywords[1])

	_, err = f.export.Import(context.Background(), strings.NewReader("a,b\nx,y\n"), services.FormatCSV)
	assert.Error(t, err)
}

func TestExportFileName(t *testing.T) {
	ts := time.Date(2024, 1, 31, 9, 45, 0, 0, time.UTC)
	assert.Equal(t, "categories_20240131_094500.csv", services.ExportFileName(ts, services.FormatCSV))
	assert.Equal(t, "categories_20240131_094500.xlsx", services.ExportFileName(ts, services.FormatXLSX))

	_, err := services.ParseExportFormat("pdf")
	assert.Error(t, err)
	got, err := services.ParseExportFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, services.FormatXLSX, got)
}
