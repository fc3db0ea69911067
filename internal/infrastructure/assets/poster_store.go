package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// PosterStore はイベントのポスター画像を保存する
type PosterStore interface {
	// Store は画像を保存して公開URLを返す
	Store(ctx context.Context, filename string, content io.Reader) (string, error)
	// Delete は公開URLで指定された画像を削除する
	Delete(ctx context.Context, url string) error
}

// HTTPPosterStore は外部のアセット配信サービスに画像をアップロードする
type HTTPPosterStore struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPPosterStore はHTTPPosterStoreを作成する
func NewHTTPPosterStore(endpoint, apiKey string) *HTTPPosterStore {
	return &HTTPPosterStore{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Store は画像をmultipartでアップロードして公開URLを返す
func (s *HTTPPosterStore) Store(ctx context.Context, filename string, content io.Reader) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("リクエスト構築に失敗しました: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("画像の読み込みに失敗しました: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("リクエスト構築に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/upload", &body)
	if err != nil {
		return "", fmt.Errorf("リクエスト構築に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ポスターのアップロードに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("ポスターのアップロードに失敗しました: status=%d", resp.StatusCode)
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("レスポンスの解析に失敗しました: %w", err)
	}
	return result.URL, nil
}

// Delete は画像を削除する
func (s *HTTPPosterStore) Delete(ctx context.Context, url string) error {
	payload, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return fmt.Errorf("リクエスト構築に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.endpoint+"/delete", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("リクエスト構築に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ポスターの削除に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("ポスターの削除に失敗しました: status=%d", resp.StatusCode)
	}
	return nil
}

// NoopPosterStore はアセットサービス未設定時に使用するダミー実装
type NoopPosterStore struct{}

func NewNoopPosterStore() *NoopPosterStore {
	return &NoopPosterStore{}
}

func (s *NoopPosterStore) Store(ctx context.Context, filename string, content io.Reader) (string, error) {
	return "", nil
}

func (s *NoopPosterStore) Delete(ctx context.Context, url string) error {
	return nil
}

var (
	_ PosterStore = (*HTTPPosterStore)(nil)
	_ PosterStore = (*NoopPosterStore)(nil)
)
