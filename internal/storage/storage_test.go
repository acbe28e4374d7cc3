package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadFile(t *testing.T) {
	var gotPath, gotAuth, gotType string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "PUT", r.Method)
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(srv.URL, "service-key", "story-media")

	result, err := s.UploadFile(context.Background(), []byte("mp4-bytes"), "story_video.mp4", "video/mp4", "user-1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(gotPath, "/storage/v1/object/story-media/user-1/"))
	assert.True(t, strings.HasSuffix(gotPath, "_story_video.mp4"))
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Equal(t, "video/mp4", gotType)
	assert.Equal(t, []byte("mp4-bytes"), gotBody)

	assert.True(t, strings.HasPrefix(result.URL, srv.URL+"/storage/v1/object/public/story-media/"))
	assert.True(t, strings.HasPrefix(result.Key, "user-1/"))
}

func TestUploadFileUniqueKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(srv.URL, "service-key", "story-media")

	a, err := s.UploadFile(context.Background(), []byte("x"), "story_audio.mp3", "audio/mpeg", "user-1")
	require.NoError(t, err)
	b, err := s.UploadFile(context.Background(), []byte("x"), "story_audio.mp3", "audio/mpeg", "user-1")
	require.NoError(t, err)

	assert.NotEqual(t, a.Key, b.Key, "regenerated assets must not overwrite prior ones")
}

func TestUploadRetriesRetryableStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(srv.URL, "service-key", "story-media")

	_, err := s.UploadFile(context.Background(), []byte("x"), "f.mp3", "audio/mpeg", "user-1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls)
}

func TestUploadDoesNotRetryClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bucket not found", http.StatusNotFound)
	}))
	defer srv.Close()

	s := New(srv.URL, "service-key", "story-media")

	_, err := s.UploadFile(context.Background(), []byte("x"), "f.mp3", "audio/mpeg", "user-1")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls)
	assert.Contains(t, err.Error(), "status 404")
}

func TestDelete(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(srv.URL, "service-key", "story-media")

	require.NoError(t, s.Delete(context.Background(), "user-1/abc_story_video.mp4"))
	assert.Equal(t, "DELETE", gotMethod)
	assert.Equal(t, "/storage/v1/object/story-media/user-1/abc_story_video.mp4", gotPath)
}

func TestGetPublicURL(t *testing.T) {
	s := New("https://example.supabase.co", "key", "story-media")

	url := s.GetPublicURL("user-1/abc_story_audio.mp3")
	assert.Equal(t, "https://example.supabase.co/storage/v1/object/public/story-media/user-1/abc_story_audio.mp3", url)
}

func TestIsRetryableStatus(t *testing.T) {
	assert.True(t, isRetryableStatus(http.StatusTooManyRequests))
	assert.True(t, isRetryableStatus(http.StatusBadGateway))
	assert.False(t, isRetryableStatus(http.StatusBadRequest))
	assert.False(t, isRetryableStatus(http.StatusUnauthorized))
}
