package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"imagehost/internal/storage"
	storeMocks "imagehost/internal/storage/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestImageService_Upload(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name             string
		originalFilename string
		nilReader        bool
		setupMocks       func(mStore *storeMocks.MockStorage)
		wantErr          error
		wantErrMsg       string
		wantFilename     string
	}{
		{
			name:             "happy path",
			originalFilename: "cat.png",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Create", mock.Anything, "cat.png", mock.Anything).
					Return(storage.ObjectInfo{Name: "cat.png", Size: 5, ContentType: "image/png", LastModified: created}, nil)
			},
			wantFilename: "cat.png",
		},
		{
			name:             "filename is sanitized before storing",
			originalFilename: "../../my cat.JPEG",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Create", mock.Anything, "my_cat.JPEG", mock.Anything).
					Return(func(ctx context.Context, name string, r io.Reader) storage.ObjectInfo {
						return storage.ObjectInfo{Name: name}
					}, nil)
			},
			wantFilename: "my_cat.JPEG",
		},
		{
			name:             "validation error - nil reader",
			originalFilename: "cat.png",
			nilReader:        true,
			setupMocks:       func(mStore *storeMocks.MockStorage) {},
			wantErr:          ErrReaderNil,
		},
		{
			name:             "validation error - empty filename",
			originalFilename: "",
			setupMocks:       func(mStore *storeMocks.MockStorage) {},
			wantErr:          ErrEmptyFilename,
		},
		{
			name:             "validation error - blank filename",
			originalFilename: "   ",
			setupMocks:       func(mStore *storeMocks.MockStorage) {},
			wantErr:          ErrEmptyFilename,
		},
		{
			name:             "validation error - unsupported extension",
			originalFilename: "notes.txt",
			setupMocks:       func(mStore *storeMocks.MockStorage) {},
			wantErr:          ErrUnsupportedFormat,
		},
		{
			name:             "validation error - no extension",
			originalFilename: "cat",
			setupMocks:       func(mStore *storeMocks.MockStorage) {},
			wantErr:          ErrUnsupportedFormat,
		},
		{
			name:             "duplicate name",
			originalFilename: "cat.png",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Create", mock.Anything, "cat.png", mock.Anything).
					Return(storage.ObjectInfo{}, storage.ErrExists)
			},
			wantErr: ErrDuplicateName,
		},
		{
			name:             "storage error",
			originalFilename: "cat.png",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Create", mock.Anything, "cat.png", mock.Anything).
					Return(storage.ObjectInfo{}, errors.New("no space left on device"))
			},
			wantErrMsg: "save image: no space left on device",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			svc := NewImageService(mStore)

			tt.setupMocks(mStore)

			var r io.Reader = strings.NewReader("hello")
			if tt.nilReader {
				r = nil
			}

			img, err := svc.Upload(ctx, r, tt.originalFilename)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, img)
			} else if tt.wantErrMsg != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantFilename, img.Filename)
			}

			mStore.AssertExpectations(t)
		})
	}
}

func TestImageService_Get(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		filename   string
		setupMocks func(mStore *storeMocks.MockStorage)
		wantErr    error
		wantErrMsg string
	}{
		{
			name:     "happy path",
			filename: "cat.png",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Stat", mock.Anything, "cat.png").Return(storage.ObjectInfo{Name: "cat.png", Size: 3}, nil)
			},
		},
		{
			name:     "not found",
			filename: "missing.png",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Stat", mock.Anything, "missing.png").Return(storage.ObjectInfo{}, storage.ErrNotFound)
			},
			wantErr: ErrNotFound,
		},
		{
			name:     "invalid name is not found",
			filename: "..",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Stat", mock.Anything, "..").Return(storage.ObjectInfo{}, storage.ErrInvalidName)
			},
			wantErr: ErrNotFound,
		},
		{
			name:     "generic storage error",
			filename: "cat.png",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Stat", mock.Anything, "cat.png").Return(storage.ObjectInfo{}, errors.New("permission denied"))
			},
			wantErrMsg: "permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			svc := NewImageService(mStore)

			tt.setupMocks(mStore)

			img, err := svc.Get(ctx, tt.filename)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, img)
			case tt.wantErrMsg != "":
				assert.EqualError(t, err, tt.wantErrMsg)
				assert.NotErrorIs(t, err, ErrNotFound)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.filename, img.Filename)
			}
			mStore.AssertExpectations(t)
		})
	}
}

func TestImageService_Open(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		svc := NewImageService(mStore)

		body := io.NopCloser(strings.NewReader("GIF89a"))
		mStore.On("Open", mock.Anything, "dog.gif").
			Return(body, storage.ObjectInfo{Name: "dog.gif", Size: 6, ContentType: "image/gif"}, nil)

		rc, img, err := svc.Open(ctx, "dog.gif")
		require.NoError(t, err)
		defer rc.Close()

		assert.Equal(t, "image/gif", img.ContentType)
		assert.Equal(t, int64(6), img.Size)
		got, _ := io.ReadAll(rc)
		assert.Equal(t, "GIF89a", string(got))
		mStore.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		svc := NewImageService(mStore)

		mStore.On("Open", mock.Anything, "missing.gif").Return(nil, storage.ObjectInfo{}, storage.ErrNotFound)

		rc, img, err := svc.Open(ctx, "missing.gif")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Nil(t, rc)
		assert.Nil(t, img)
		mStore.AssertExpectations(t)
	})
}
