package simpleasset_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gotidy/ptr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-asset/pkg/simpleasset"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newAsset(filename, contentType string, offset time.Duration, status simpleasset.AssetStatus) *simpleasset.Asset {
	return &simpleasset.Asset{
		ID:          uuid.New(),
		Filename:    filename,
		ContentType: contentType,
		UploadDate:  baseTime.Add(offset),
		Status:      status,
	}
}

func filenames(assets []*simpleasset.Asset) []string {
	names := make([]string, 0, len(assets))
	for _, a := range assets {
		names = append(names, a.Filename)
	}
	return names
}

func TestBuildQuery(t *testing.T) {
	start := baseTime
	end := baseTime.Add(time.Hour)

	tests := []struct {
		name    string
		filter  *simpleasset.AssetFilter
		clauses []simpleasset.Clause
		sortDir simpleasset.SortDirection
	}{
		{
			name:    "nil filter",
			filter:  nil,
			sortDir: simpleasset.SortDesc,
		},
		{
			name:    "empty filter",
			filter:  &simpleasset.AssetFilter{},
			sortDir: simpleasset.SortDesc,
		},
		{
			name: "blank text fields are ignored",
			filter: &simpleasset.AssetFilter{
				Filename:    ptr.String("  "),
				ContentType: ptr.String(""),
			},
			sortDir: simpleasset.SortDesc,
		},
		{
			name: "all fields",
			filter: &simpleasset.AssetFilter{
				UploadDateStart: &start,
				UploadDateEnd:   &end,
				Filename:        ptr.String("Report"),
				ContentType:     ptr.String("image/PNG"),
				Statuses:        []simpleasset.AssetStatus{simpleasset.AssetStatusFailed},
				SortDirection:   simpleasset.SortAsc,
			},
			clauses: []simpleasset.Clause{
				{Field: simpleasset.FieldUploadDate, Op: simpleasset.OpGreaterOrEqual, Value: start},
				{Field: simpleasset.FieldUploadDate, Op: simpleasset.OpLessOrEqual, Value: end},
				{Field: simpleasset.FieldFilename, Op: simpleasset.OpContainsFold, Value: "Report"},
				{Field: simpleasset.FieldContentType, Op: simpleasset.OpEqualFold, Value: "image/PNG"},
				{Field: simpleasset.FieldStatus, Op: simpleasset.OpIn, Value: []simpleasset.AssetStatus{simpleasset.AssetStatusFailed}},
			},
			sortDir: simpleasset.SortAsc,
		},
		{
			name:    "unknown sort direction falls back to descending",
			filter:  &simpleasset.AssetFilter{SortDirection: "sideways"},
			sortDir: simpleasset.SortDesc,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := simpleasset.BuildQuery(tt.filter)
			assert.Equal(t, tt.clauses, q.Clauses)
			assert.Equal(t, simpleasset.FieldUploadDate, q.Sort.Field)
			assert.Equal(t, tt.sortDir, q.Sort.Direction)
		})
	}
}

func TestQuery_Apply(t *testing.T) {
	assets := []*simpleasset.Asset{
		newAsset("Quarterly-Report.pdf", "application/pdf", 0, simpleasset.AssetStatusCompleted),
		newAsset("holiday.png", "image/png", time.Hour, simpleasset.AssetStatusPending),
		newAsset("report_draft.docx", "application/msword", 2*time.Hour, simpleasset.AssetStatusFailed),
		newAsset("logo.PNG", "IMAGE/PNG", 3*time.Hour, simpleasset.AssetStatusCompleted),
	}

	t.Run("empty query returns everything newest first", func(t *testing.T) {
		got := simpleasset.BuildQuery(nil).Apply(assets)
		assert.Equal(t, []string{"logo.PNG", "report_draft.docx", "holiday.png", "Quarterly-Report.pdf"}, filenames(got))
	})

	t.Run("ascending", func(t *testing.T) {
		got := simpleasset.BuildQuery(&simpleasset.AssetFilter{SortDirection: simpleasset.SortAsc}).Apply(assets)
		assert.Equal(t, []string{"Quarterly-Report.pdf", "holiday.png", "report_draft.docx", "logo.PNG"}, filenames(got))
	})

	t.Run("filename substring is case-insensitive", func(t *testing.T) {
		got := simpleasset.BuildQuery(&simpleasset.AssetFilter{Filename: ptr.String("REPORT")}).Apply(assets)
		assert.Equal(t, []string{"report_draft.docx", "Quarterly-Report.pdf"}, filenames(got))
	})

	t.Run("content type is case-insensitive exact match", func(t *testing.T) {
		got := simpleasset.BuildQuery(&simpleasset.AssetFilter{ContentType: ptr.String("image/png")}).Apply(assets)
		assert.Equal(t, []string{"logo.PNG", "holiday.png"}, filenames(got))

		got = simpleasset.BuildQuery(&simpleasset.AssetFilter{ContentType: ptr.String("image")}).Apply(assets)
		assert.Empty(t, got)
	})

	t.Run("date bounds are inclusive", func(t *testing.T) {
		start := baseTime.Add(time.Hour)
		end := baseTime.Add(2 * time.Hour)
		got := simpleasset.BuildQuery(&simpleasset.AssetFilter{
			UploadDateStart: &start,
			UploadDateEnd:   &end,
		}).Apply(assets)
		assert.Equal(t, []string{"report_draft.docx", "holiday.png"}, filenames(got))
	})

	t.Run("status set", func(t *testing.T) {
		got := simpleasset.BuildQuery(&simpleasset.AssetFilter{
			Statuses: []simpleasset.AssetStatus{simpleasset.AssetStatusPending, simpleasset.AssetStatusFailed},
		}).Apply(assets)
		assert.Equal(t, []string{"report_draft.docx", "holiday.png"}, filenames(got))
	})

	t.Run("clauses are conjunctive", func(t *testing.T) {
		got := simpleasset.BuildQuery(&simpleasset.AssetFilter{
			Filename:    ptr.String("o"),
			ContentType: ptr.String("image/png"),
			Statuses:    []simpleasset.AssetStatus{simpleasset.AssetStatusCompleted},
		}).Apply(assets)
		assert.Equal(t, []string{"logo.PNG"}, filenames(got))
	})

	t.Run("input is not reordered", func(t *testing.T) {
		before := filenames(assets)
		simpleasset.BuildQuery(nil).Apply(assets)
		assert.Equal(t, before, filenames(assets))
	})
}

func TestQuery_TiesBreakByID(t *testing.T) {
	a := newAsset("a", "text/plain", 0, simpleasset.AssetStatusPending)
	b := newAsset("b", "text/plain", 0, simpleasset.AssetStatusPending)
	a.ID = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	b.ID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

	for _, dir := range []simpleasset.SortDirection{simpleasset.SortAsc, simpleasset.SortDesc} {
		got := simpleasset.BuildQuery(&simpleasset.AssetFilter{SortDirection: dir}).Apply([]*simpleasset.Asset{a, b})
		require.Len(t, got, 2)
		assert.Equal(t, []string{"b", "a"}, filenames(got), "direction %s", dir)
	}
}

func TestClause_UnexpectedValueMatchesNothing(t *testing.T) {
	a := newAsset("a", "text/plain", 0, simpleasset.AssetStatusPending)

	assert.False(t, simpleasset.Clause{Field: simpleasset.FieldUploadDate, Op: simpleasset.OpGreaterOrEqual, Value: "yesterday"}.Matches(a))
	assert.False(t, simpleasset.Clause{Field: simpleasset.FieldStatus, Op: simpleasset.OpIn, Value: "PENDING"}.Matches(a))
	assert.False(t, simpleasset.Clause{Field: simpleasset.FieldID, Op: simpleasset.OpEqualFold, Value: a.ID.String()}.Matches(a))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_final\\v2`, simpleasset.EscapeLike(`50% off_final\v2`))
	assert.Equal(t, "plain", simpleasset.EscapeLike("plain"))
}

func TestParseSortDirection(t *testing.T) {
	assert.Equal(t, simpleasset.SortAsc, simpleasset.ParseSortDirection("asc"))
	assert.Equal(t, simpleasset.SortAsc, simpleasset.ParseSortDirection(" ASC "))
	assert.Equal(t, simpleasset.SortDesc, simpleasset.ParseSortDirection("DESC"))
	assert.Equal(t, simpleasset.SortDesc, simpleasset.ParseSortDirection(""))
}
