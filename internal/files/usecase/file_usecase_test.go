package usecase

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"filestore/internal/files/domain/model"
	"filestore/internal/files/domain/service"
	apperrors "filestore/internal/shared/errors"
	"filestore/internal/shared/eventbus"
	"filestore/internal/shared/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type mockBlobStore struct {
	mock.Mock
}

func (m *mockBlobStore) Upload(ctx context.Context, filename string, metadata model.BlobMetadata, source io.Reader) (primitive.ObjectID, error) {
	args := m.Called(ctx, filename, metadata, source)
	return args.Get(0).(primitive.ObjectID), args.Error(1)
}

func (m *mockBlobStore) OpenDownload(ctx context.Context, id primitive.ObjectID) (io.ReadCloser, int64, error) {
	args := m.Called(ctx, id)
	var reader io.ReadCloser
	if args.Get(0) != nil {
		reader = args.Get(0).(io.ReadCloser)
	}
	return reader, args.Get(1).(int64), args.Error(2)
}

func (m *mockBlobStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockFileRepo struct {
	mock.Mock
}

func (m *mockFileRepo) Insert(ctx context.Context, file *model.StoredFile) error {
	args := m.Called(ctx, file)
	return args.Error(0)
}

func (m *mockFileRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*model.StoredFile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StoredFile), args.Error(1)
}

func (m *mockFileRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.StoredFile, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.StoredFile), args.Error(1)
}

func (m *mockFileRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockConverter struct {
	mock.Mock
}

func (m *mockConverter) ConvertPDF(ctx context.Context, req model.ConversionRequest) ([]model.UploadResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.UploadResult), args.Error(1)
}

type mockThumbnails struct {
	mock.Mock
}

func (m *mockThumbnails) Generate(source io.Reader) ([]byte, error) {
	args := m.Called(source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockThumbnails) ThumbnailName(filename string) string {
	args := m.Called(filename)
	return args.String(0)
}

type fileUsecaseFixture struct {
	blobs *mockBlobStore
	repo  *mockFileRepo
	conv  *mockConverter
	bus   *eventbus.EventBus
	uc    FileUsecase
}

func newFileUsecaseFixture(t *testing.T, thumbs service.ThumbnailService) *fileUsecaseFixture {
	t.Helper()

	blobs := new(mockBlobStore)
	repo := new(mockFileRepo)
	conv := new(mockConverter)
	bus := eventbus.NewEventBus(logger.NewLogger())
	emitter := NewFileEventEmitter(bus, nil, nil, logger.NewLogger())

	return &fileUsecaseFixture{
		blobs: blobs,
		repo:  repo,
		conv:  conv,
		bus:   bus,
		uc:    NewFileUsecase(blobs, repo, conv, thumbs, emitter, logger.NewLogger()),
	}
}

// recordBusEvents subscribes a buffered channel to one bus event type.
func recordBusEvents(bus *eventbus.EventBus, eventType string) <-chan eventbus.Event {
	ch := make(chan eventbus.Event, 4)
	bus.Subscribe(eventType, func(ctx context.Context, e eventbus.Event) error {
		ch <- e
		return nil
	})
	return ch
}

func awaitBusEvent(t *testing.T, ch <-chan eventbus.Event) eventbus.Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(time.Second):
		t.Fatal("expected a bus event, got none")
		return nil
	}
}

// writeScratch stages upload bytes the way the handler does before calling
// the usecase.
func writeScratch(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestProcessUpload_UnsupportedTypeWritesNothing(t *testing.T) {
	f := newFileUsecaseFixture(t, nil)

	_, err := f.uc.ProcessUpload(context.Background(), ProcessUploadRequest{
		UserID:       "user-1",
		OriginalName: "notes.txt",
		ContentType:  "text/plain",
		ScratchPath:  writeScratch(t, "notes.txt", []byte("plain text")),
		Size:         10,
	})

	require.ErrorIs(t, err, apperrors.ErrUnsupportedType)
	f.blobs.AssertNotCalled(t, "Upload")
	f.repo.AssertNotCalled(t, "Insert")
	f.conv.AssertNotCalled(t, "ConvertPDF")
}

func TestProcessUpload_ImageYieldsSingleEntry(t *testing.T) {
	f := newFileUsecaseFixture(t, nil)
	uploaded := recordBusEvents(f.bus, eventbus.EventTypeFileUploaded)

	blobID := primitive.NewObjectID()
	f.blobs.On("Upload", mock.Anything, mock.Anything, mock.MatchedBy(func(meta model.BlobMetadata) bool {
		return meta.OwnerID == "user-1" && meta.ContentType == "image/png"
	}), mock.Anything).Return(blobID, nil).Once()
	f.repo.On("Insert", mock.Anything, mock.MatchedBy(func(file *model.StoredFile) bool {
		return file.ID == blobID && file.OwnerID == "user-1" && !file.HasThumbnail()
	})).Return(nil).Once()

	results, err := f.uc.ProcessUpload(context.Background(), ProcessUploadRequest{
		UserID:       "user-1",
		OriginalName: "photo.png",
		ContentType:  "image/PNG; charset=binary",
		ScratchPath:  writeScratch(t, "photo.png", []byte("png bytes")),
		Size:         9,
	})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, blobID.Hex(), results[0].FileID)
	assert.Equal(t, "photo.png", results[0].OriginalName)
	assert.Equal(t, "image/png", results[0].ContentType)
	_, parseErr := model.ParseFileID(results[0].FileID)
	assert.NoError(t, parseErr)

	event := awaitBusEvent(t, uploaded)
	data := event.Data().(map[string]interface{})
	assert.Equal(t, blobID.Hex(), data["fileId"])

	f.blobs.AssertExpectations(t)
	f.repo.AssertExpectations(t)
}

func TestProcessUpload_ThumbnailFailureDoesNotFailUpload(t *testing.T) {
	thumbs := new(mockThumbnails)
	thumbs.On("Generate", mock.Anything).Return(nil, errors.New("undecodable")).Once()

	f := newFileUsecaseFixture(t, thumbs)

	blobID := primitive.NewObjectID()
	f.blobs.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(blobID, nil).Once()
	f.repo.On("Insert", mock.Anything, mock.MatchedBy(func(file *model.StoredFile) bool {
		return !file.HasThumbnail()
	})).Return(nil).Once()

	results, err := f.uc.ProcessUpload(context.Background(), ProcessUploadRequest{
		UserID:       "user-1",
		OriginalName: "photo.png",
		ContentType:  "image/png",
		ScratchPath:  writeScratch(t, "photo.png", []byte("png bytes")),
		Size:         9,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Exactly one blob write: the image itself, no thumbnail.
	f.blobs.AssertNumberOfCalls(t, "Upload", 1)
	thumbs.AssertExpectations(t)
}

func TestProcessUpload_MetadataFailureRemovesOrphanBlobs(t *testing.T) {
	thumbs := new(mockThumbnails)
	thumbs.On("Generate", mock.Anything).Return([]byte("thumb bytes"), nil).Once()
	thumbs.On("ThumbnailName", mock.Anything).Return("photo_thumb.jpg").Once()

	f := newFileUsecaseFixture(t, thumbs)

	imageID := primitive.NewObjectID()
	thumbID := primitive.NewObjectID()
	f.blobs.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(imageID, nil).Once()
	f.blobs.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(thumbID, nil).Once()
	f.repo.On("Insert", mock.Anything, mock.Anything).
		Return(errors.New("duplicate key")).Once()
	f.blobs.On("Delete", mock.Anything, imageID).Return(nil).Once()
	f.blobs.On("Delete", mock.Anything, thumbID).Return(nil).Once()

	_, err := f.uc.ProcessUpload(context.Background(), ProcessUploadRequest{
		UserID:       "user-1",
		OriginalName: "photo.png",
		ContentType:  "image/png",
		ScratchPath:  writeScratch(t, "photo.png", []byte("png bytes")),
		Size:         9,
	})

	require.Error(t, err)
	f.blobs.AssertExpectations(t)
	f.repo.AssertExpectations(t)
}

func TestProcessUpload_PDFRelaysConvertedPages(t *testing.T) {
	f := newFileUsecaseFixture(t, nil)

	scratch := writeScratch(t, "doc.pdf", []byte("%PDF-1.4"))
	pages := []model.UploadResult{
		{OriginalName: "doc.pdf", FileID: "page-1", Filename: "doc_1.png", ContentType: model.ContentTypePNG, PageNumber: 1},
		{OriginalName: "doc.pdf", FileID: "page-2", Filename: "doc_2.png", ContentType: model.ContentTypePNG, PageNumber: 2},
	}
	f.conv.On("ConvertPDF", mock.Anything, mock.MatchedBy(func(req model.ConversionRequest) bool {
		return req.UserID == "user-1" && req.OriginalName == "doc.pdf" && req.ScratchPath == scratch
	})).Return(pages, nil).Once()

	results, err := f.uc.ProcessUpload(context.Background(), ProcessUploadRequest{
		UserID:       "user-1",
		OriginalName: "doc.pdf",
		ContentType:  model.ContentTypePDF,
		ScratchPath:  scratch,
		Size:         8,
	})
	require.NoError(t, err)
	assert.Equal(t, pages, results)

	// The conversion service owns the page blobs; nothing is written locally.
	f.blobs.AssertNotCalled(t, "Upload")
	f.repo.AssertNotCalled(t, "Insert")
	f.conv.AssertExpectations(t)
}

func TestProcessUpload_EmptyConversionYieldsEmptyArray(t *testing.T) {
	f := newFileUsecaseFixture(t, nil)

	f.conv.On("ConvertPDF", mock.Anything, mock.Anything).
		Return(nil, nil).Once()

	results, err := f.uc.ProcessUpload(context.Background(), ProcessUploadRequest{
		UserID:       "user-1",
		OriginalName: "blank.pdf",
		ContentType:  model.ContentTypePDF,
		ScratchPath:  writeScratch(t, "blank.pdf", []byte("%PDF-1.4")),
		Size:         8,
	})
	require.NoError(t, err)
	require.NotNil(t, results)
	assert.Empty(t, results)
}

func TestProcessUpload_ConversionFailurePropagates(t *testing.T) {
	f := newFileUsecaseFixture(t, nil)

	f.conv.On("ConvertPDF", mock.Anything, mock.Anything).
		Return(nil, apperrors.ErrConversionFailed).Once()

	_, err := f.uc.ProcessUpload(context.Background(), ProcessUploadRequest{
		UserID:       "user-1",
		OriginalName: "doc.pdf",
		ContentType:  model.ContentTypePDF,
		ScratchPath:  writeScratch(t, "doc.pdf", []byte("%PDF-1.4")),
		Size:         8,
	})

	require.ErrorIs(t, err, apperrors.ErrConversionFailed)
	f.blobs.AssertNotCalled(t, "Upload")
	f.repo.AssertNotCalled(t, "Insert")
}

func TestDeleteFile_OwnerMismatchLeavesObjectIntact(t *testing.T) {
	f := newFileUsecaseFixture(t, nil)

	fileID := primitive.NewObjectID()
	f.repo.On("FindByID", mock.Anything, fileID).Return(&model.StoredFile{
		ID:      fileID,
		OwnerID: "owner-a",
	}, nil).Once()

	err := f.uc.DeleteFile(context.Background(), DeleteFileRequest{
		FileID: fileID.Hex(),
		UserID: "owner-b",
	})

	require.ErrorIs(t, err, apperrors.ErrOwnerMismatch)
	f.repo.AssertNotCalled(t, "Delete")
	f.blobs.AssertNotCalled(t, "Delete")
}

func TestDeleteFile_TokenSubjectMustMatchClaimedOwner(t *testing.T) {
	f := newFileUsecaseFixture(t, nil)

	err := f.uc.DeleteFile(context.Background(), DeleteFileRequest{
		FileID:       primitive.NewObjectID().Hex(),
		UserID:       "owner-a",
		TokenSubject: "owner-b",
	})

	require.ErrorIs(t, err, apperrors.ErrOwnerMismatch)
	f.repo.AssertNotCalled(t, "FindByID")
}

func TestDeleteFile_MissingOwnerRejected(t *testing.T) {
	f := newFileUsecaseFixture(t, nil)

	err := f.uc.DeleteFile(context.Background(), DeleteFileRequest{
		FileID: primitive.NewObjectID().Hex(),
	})

	require.ErrorIs(t, err, apperrors.ErrMissingOwnerID)
	f.repo.AssertNotCalled(t, "FindByID")
}

func TestDeleteFile_MalformedIDRejected(t *testing.T) {
	f := newFileUsecaseFixture(t, nil)

	err := f.uc.DeleteFile(context.Background(), DeleteFileRequest{
		FileID: "not-an-object-id",
		UserID: "owner-a",
	})

	require.ErrorIs(t, err, apperrors.ErrInvalidFileID)
	f.repo.AssertNotCalled(t, "FindByID")
}

func TestDeleteFile_RemovesMetadataBlobAndThumbnail(t *testing.T) {
	f := newFileUsecaseFixture(t, nil)
	deleted := recordBusEvents(f.bus, eventbus.EventTypeFileDeleted)

	fileID := primitive.NewObjectID()
	thumbID := primitive.NewObjectID()
	f.repo.On("FindByID", mock.Anything, fileID).Return(&model.StoredFile{
		ID:          fileID,
		OwnerID:     "owner-a",
		Filename:    "photo.png",
		ThumbnailID: thumbID,
	}, nil).Once()
	f.repo.On("Delete", mock.Anything, fileID).Return(nil).Once()
	f.blobs.On("Delete", mock.Anything, fileID).Return(nil).Once()
	f.blobs.On("Delete", mock.Anything, thumbID).Return(nil).Once()

	err := f.uc.DeleteFile(context.Background(), DeleteFileRequest{
		FileID: fileID.Hex(),
		UserID: "owner-a",
	})
	require.NoError(t, err)

	event := awaitBusEvent(t, deleted)
	data := event.Data().(map[string]interface{})
	assert.Equal(t, fileID.Hex(), data["fileId"])

	f.repo.AssertExpectations(t)
	f.blobs.AssertExpectations(t)
}

func TestDeleteFile_BlobFailureAfterMetadataRemovalStillSucceeds(t *testing.T) {
	f := newFileUsecaseFixture(t, nil)

	fileID := primitive.NewObjectID()
	f.repo.On("FindByID", mock.Anything, fileID).Return(&model.StoredFile{
		ID:      fileID,
		OwnerID: "owner-a",
	}, nil).Once()
	f.repo.On("Delete", mock.Anything, fileID).Return(nil).Once()
	f.blobs.On("Delete", mock.Anything, fileID).Return(errors.New("chunks busy")).Once()

	// Metadata is gone so the file no longer resolves; orphaned chunks are
	// logged, not surfaced.
	err := f.uc.DeleteFile(context.Background(), DeleteFileRequest{
		FileID: fileID.Hex(),
		UserID: "owner-a",
	})
	assert.NoError(t, err)
}

func TestGetFile_MalformedIDRejected(t *testing.T) {
	f := newFileUsecaseFixture(t, nil)

	_, err := f.uc.GetFile(context.Background(), GetFileRequest{FileID: "zz"})

	require.ErrorIs(t, err, apperrors.ErrInvalidFileID)
	f.repo.AssertNotCalled(t, "FindByID")
}
