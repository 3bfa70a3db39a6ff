package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/artsdesk/artsdesk-api/internal/dto"
	"github.com/artsdesk/artsdesk-api/internal/models"
	appErrors "github.com/artsdesk/artsdesk-api/pkg/errors"
)

type mappingStoreStub struct {
	mappings map[string]*models.FieldMapping
	seq      int
}

func newMappingStoreStub() *mappingStoreStub {
	return &mappingStoreStub{mappings: make(map[string]*models.FieldMapping)}
}

func (m *mappingStoreStub) Create(ctx context.Context, mapping *models.FieldMapping) error {
	if mapping.ID == "" {
		m.seq++
		mapping.ID = fmt.Sprintf("map-%d", m.seq)
	}
	m.mappings[mapping.ID] = mapping
	return nil
}

func (m *mappingStoreStub) GetByName(ctx context.Context, name string, contentType models.ContentType) (*models.FieldMapping, error) {
	for _, mapping := range m.mappings {
		if mapping.Name == name && mapping.ContentType == contentType {
			return mapping, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mappingStoreStub) List(ctx context.Context, contentType models.ContentType) ([]models.FieldMapping, error) {
	result := make([]models.FieldMapping, 0, len(m.mappings))
	for _, mapping := range m.mappings {
		if mapping.ContentType == contentType {
			result = append(result, *mapping)
		}
	}
	return result, nil
}

func (m *mappingStoreStub) Delete(ctx context.Context, id string) error {
	if _, ok := m.mappings[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.mappings, id)
	return nil
}

type transferStorageStub struct {
	files map[string][]byte
}

func newTransferStorageStub() *transferStorageStub {
	return &transferStorageStub{files: make(map[string][]byte)}
}

func (t *transferStorageStub) Save(filename string, data []byte) (string, error) {
	t.files[filename] = data
	return filename, nil
}

func (t *transferStorageStub) Open(filename string) (*os.File, error) {
	data, ok := t.files[filename]
	if !ok {
		return nil, os.ErrNotExist
	}
	f, err := os.CreateTemp(os.TempDir(), "transfer-test-")
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

type signerStub struct{}

func (signerStub) Generate(refID, relPath string) (string, time.Time, error) {
	return refID + "|" + relPath, time.Now().Add(time.Hour), nil
}

func (signerStub) Parse(token string, allowExpired bool) (string, string, time.Time, error) {
	parts := strings.SplitN(token, "|", 2)
	if len(parts) != 2 {
		return "", "", time.Time{}, fmt.Errorf("malformed token")
	}
	return parts[0], parts[1], time.Now().Add(time.Hour), nil
}

func newTransferService(subs submissionStore, mappings mappingStore, storage transferFileStorage) *TransferService {
	return NewTransferService(subs, mappings, storage, signerStub{}, nil, TransferServiceConfig{MaxImportRows: 10})
}

func TestTransferServiceExportDefaultHeaders(t *testing.T) {
	repo := newSubmissionRepoStub()
	attrs, _ := json.Marshal(map[string]interface{}{
		"title":         "Jo Brush",
		"contact_email": "jo@example.org",
		"year":          1999,
	})
	repo.subs["sub-1"] = &models.Submission{
		ID:          "sub-1",
		ContentType: models.ContentTypeArtist,
		OwnerID:     "user-1",
		Status:      models.SubmissionStatusPublished,
		Attrs:       attrs,
	}
	storage := newTransferStorageStub()
	svc := newTransferService(repo, newMappingStoreStub(), storage)

	result, err := svc.Export(context.Background(), dto.ExportRequest{ContentType: models.ContentTypeArtist}, moderatorClaims("mod-1"))
	require.NoError(t, err)
	require.Equal(t, 1, result.Rows)
	require.Contains(t, result.URL, "/transfers/download?token=")

	raw, ok := storage.files[result.FileName]
	require.True(t, ok)
	records, err := csv.NewReader(strings.NewReader(string(raw))).ReadAll()
	require.NoError(t, err)
	require.Equal(t, []string{"title", "bio", "discipline", "city", "website", "contact_email"}, records[0])
	require.Equal(t, "Jo Brush", records[1][0])
	require.Equal(t, "jo@example.org", records[1][5])
}

func TestTransferServiceExportWithPreset(t *testing.T) {
	repo := newSubmissionRepoStub()
	attrs, _ := json.Marshal(map[string]interface{}{"title": "Jo Brush", "city": "Rotterdam"})
	repo.subs["sub-1"] = &models.Submission{
		ID:          "sub-1",
		ContentType: models.ContentTypeArtist,
		Status:      models.SubmissionStatusPublished,
		Attrs:       attrs,
	}
	mappings := newMappingStoreStub()
	columns, _ := json.Marshal([]models.MappingColumn{
		{Column: "Name", Field: "title"},
		{Column: "City", Field: "city"},
	})
	mappings.mappings["map-1"] = &models.FieldMapping{
		ID:          "map-1",
		Name:        "directory",
		ContentType: models.ContentTypeArtist,
		Columns:     columns,
	}
	storage := newTransferStorageStub()
	svc := newTransferService(repo, mappings, storage)

	result, err := svc.Export(context.Background(), dto.ExportRequest{
		ContentType: models.ContentTypeArtist,
		Preset:      "directory",
	}, moderatorClaims("mod-1"))
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(storage.files[result.FileName]))).ReadAll()
	require.NoError(t, err)
	require.Equal(t, []string{"Name", "City"}, records[0])
	require.Equal(t, []string{"Jo Brush", "Rotterdam"}, records[1])
}

func TestTransferServiceExportRejectsUnknownFormat(t *testing.T) {
	svc := newTransferService(newSubmissionRepoStub(), newMappingStoreStub(), newTransferStorageStub())

	_, err := svc.Export(context.Background(), dto.ExportRequest{
		ContentType: models.ContentTypeArtist,
		Format:      "xlsx",
	}, moderatorClaims("mod-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTransferServiceExportForbiddenForMembers(t *testing.T) {
	svc := newTransferService(newSubmissionRepoStub(), newMappingStoreStub(), newTransferStorageStub())

	_, err := svc.Export(context.Background(), dto.ExportRequest{ContentType: models.ContentTypeArtist}, memberClaims("user-1"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestTransferServiceImportIdentityColumns(t *testing.T) {
	repo := newSubmissionRepoStub()
	svc := newTransferService(repo, newMappingStoreStub(), newTransferStorageStub())

	input := strings.Join([]string{
		"title,contact_email",
		"Jo Brush,jo@example.org",
		"No Email,not-an-email",
		"Ann Chisel,ann@example.org",
	}, "\n")

	result, err := svc.Import(context.Background(), dto.ImportRequest{
		ContentType: models.ContentTypeArtist,
	}, strings.NewReader(input), moderatorClaims("mod-1"))
	require.NoError(t, err)
	require.Equal(t, 2, result.Imported)
	require.Len(t, result.Errors, 1)
	require.Equal(t, 3, result.Errors[0].Line)

	require.Len(t, repo.subs, 2)
	for _, sub := range repo.subs {
		require.Equal(t, models.SubmissionStatusPending, sub.Status)
		require.Equal(t, "mod-1", sub.OwnerID)
	}
}

func TestTransferServiceImportWithExplicitColumns(t *testing.T) {
	repo := newSubmissionRepoStub()
	svc := newTransferService(repo, newMappingStoreStub(), newTransferStorageStub())

	input := "Name,Email\nJo Brush,jo@example.org\n"
	result, err := svc.Import(context.Background(), dto.ImportRequest{
		ContentType: models.ContentTypeArtist,
		Columns: []models.MappingColumn{
			{Column: "Name", Field: "title"},
			{Column: "Email", Field: "contact_email"},
		},
	}, strings.NewReader(input), moderatorClaims("mod-1"))
	require.NoError(t, err)
	require.Equal(t, 1, result.Imported)
	require.Empty(t, result.Errors)
}

func TestTransferServiceImportNoMatchingColumns(t *testing.T) {
	svc := newTransferService(newSubmissionRepoStub(), newMappingStoreStub(), newTransferStorageStub())

	_, err := svc.Import(context.Background(), dto.ImportRequest{
		ContentType: models.ContentTypeArtist,
	}, strings.NewReader("foo,bar\n1,2\n"), moderatorClaims("mod-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTransferServiceImportRowLimit(t *testing.T) {
	repo := newSubmissionRepoStub()
	svc := newTransferService(repo, newMappingStoreStub(), newTransferStorageStub())

	var b strings.Builder
	b.WriteString("title,contact_email\n")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, "Artist %d,artist%d@example.org\n", i, i)
	}

	result, err := svc.Import(context.Background(), dto.ImportRequest{
		ContentType: models.ContentTypeArtist,
	}, strings.NewReader(b.String()), moderatorClaims("mod-1"))
	require.NoError(t, err)
	require.Equal(t, 10, result.Imported)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0].Message, "row limit")
}

func TestTransferServiceExportImportRoundTrip(t *testing.T) {
	source := newSubmissionRepoStub()
	attrs, _ := json.Marshal(map[string]interface{}{"title": "Jo Brush", "city": "Rotterdam"})
	source.subs["sub-1"] = &models.Submission{
		ID:          "sub-1",
		ContentType: models.ContentTypeArtist,
		Status:      models.SubmissionStatusPublished,
		Attrs:       attrs,
	}
	mappings := newMappingStoreStub()
	columns, _ := json.Marshal([]models.MappingColumn{
		{Column: "Name", Field: "title"},
		{Column: "City", Field: "city"},
	})
	mappings.mappings["map-1"] = &models.FieldMapping{
		ID:          "map-1",
		Name:        "directory",
		ContentType: models.ContentTypeArtist,
		Columns:     columns,
	}
	storage := newTransferStorageStub()
	svc := newTransferService(source, mappings, storage)

	exported, err := svc.Export(context.Background(), dto.ExportRequest{
		ContentType: models.ContentTypeArtist,
		Preset:      "directory",
	}, moderatorClaims("mod-1"))
	require.NoError(t, err)

	target := newSubmissionRepoStub()
	svc = newTransferService(target, mappings, storage)
	result, err := svc.Import(context.Background(), dto.ImportRequest{
		ContentType: models.ContentTypeArtist,
		Preset:      "directory",
	}, strings.NewReader(string(storage.files[exported.FileName])), moderatorClaims("mod-1"))
	require.NoError(t, err)
	require.Equal(t, 1, result.Imported)
	require.Empty(t, result.Errors)

	require.Len(t, target.subs, 1)
	for _, sub := range target.subs {
		var got map[string]interface{}
		require.NoError(t, json.Unmarshal(sub.Attrs, &got))
		require.Equal(t, "Jo Brush", got["title"])
		require.Equal(t, "Rotterdam", got["city"])
	}
}

func TestTransferServiceSaveMappingRejectsUnknownField(t *testing.T) {
	svc := newTransferService(newSubmissionRepoStub(), newMappingStoreStub(), newTransferStorageStub())

	_, err := svc.SaveMapping(context.Background(), dto.CreateMappingRequest{
		Name:        "bad",
		ContentType: models.ContentTypeArtist,
		Columns: []models.MappingColumn{
			{Column: "Name", Field: "title"},
			{Column: "Height", Field: "height_cm"},
		},
	}, moderatorClaims("mod-1"))
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Len(t, appErr.Fields, 1)
	require.Equal(t, "height_cm", appErr.Fields[0].Field)
}

func TestTransferServiceDownload(t *testing.T) {
	storage := newTransferStorageStub()
	storage.files["transfers/artist-x.csv"] = []byte("title\nJo Brush\n")
	svc := newTransferService(newSubmissionRepoStub(), newMappingStoreStub(), storage)

	download, err := svc.Download(context.Background(), "x|transfers/artist-x.csv")
	require.NoError(t, err)
	defer download.File.Close()
	require.Equal(t, "artist-x.csv", download.Filename)

	_, err = svc.Download(context.Background(), "garbage")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
