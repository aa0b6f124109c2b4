package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Mokona5901/ChatApp/internal/metrics"
	"github.com/Mokona5901/ChatApp/internal/model"
)

var (
	// ErrUpstream covers any failure of the media host or GIF provider.
	ErrUpstream = errors.New("upstream provider error")

	// ErrImageTooLarge rejects uploads over the decoded size limit.
	ErrImageTooLarge = errors.New("image exceeds size limit")
)

// MaxImageBytes is the decoded upload limit (matches the client cap).
const MaxImageBytes = 32 * 1024 * 1024

const (
	imgbbUploadURL = "https://api.imgbb.com/1/upload"
	tenorSearchURL = "https://tenor.googleapis.com/v2/search"
)

// MediaService talks to the two external content providers: imgbb for
// image hosting and Tenor for GIF search. Both are consumed through
// narrow contracts; neither holds any chat state.
type MediaService struct {
	imgbbKey string
	tenorKey string
	client   *http.Client
}

func NewMediaService(imgbbKey, tenorKey string) *MediaService {
	return &MediaService{
		imgbbKey: imgbbKey,
		tenorKey: tenorKey,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type UploadResult struct {
	URL       string `json:"url"`
	DeleteURL string `json:"deleteUrl"`
}

// UploadImage sends a base64 payload (data-URL prefix allowed) to the
// media host and returns the hosted URL.
func (s *MediaService) UploadImage(ctx context.Context, imageBase64 string) (*UploadResult, error) {
	// Strip a data URL prefix if the client sent one.
	if idx := strings.Index(imageBase64, "base64,"); idx >= 0 {
		imageBase64 = imageBase64[idx+len("base64,"):]
	}
	if imageBase64 == "" {
		return nil, fmt.Errorf("empty image payload")
	}
	// Decoded size is 3/4 of the base64 length.
	if len(imageBase64)/4*3 > MaxImageBytes {
		return nil, ErrImageTooLarge
	}

	form := url.Values{}
	form.Set("key", s.imgbbKey)
	form.Set("image", imageBase64)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, imgbbUploadURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.MediaUploads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		metrics.MediaUploads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: media host returned %d", ErrUpstream, resp.StatusCode)
	}

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			URL       string `json:"url"`
			DeleteURL string `json:"delete_url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || !body.Success || body.Data.URL == "" {
		metrics.MediaUploads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: unexpected media host response", ErrUpstream)
	}

	metrics.MediaUploads.WithLabelValues("ok").Inc()
	return &UploadResult{URL: body.Data.URL, DeleteURL: body.Data.DeleteURL}, nil
}

// DeleteImage asks the media host to remove a hosted image. Best-effort:
// failures are logged and never propagated.
func (s *MediaService) DeleteImage(imageURL string) {
	req, err := http.NewRequest(http.MethodDelete, imageURL, nil)
	if err != nil {
		return
	}
	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("[Media] delete %s failed: %v", imageURL, err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		log.Printf("[Media] delete %s: HTTP %d", imageURL, resp.StatusCode)
	}
}

// SearchGIFs proxies a query to Tenor and returns preview hits.
func (s *MediaService) SearchGIFs(ctx context.Context, query string, limit int) ([]model.GIFResult, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("key", s.tenorKey)
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("media_filter", "tinygif")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tenorSearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: gif provider returned %d", ErrUpstream, resp.StatusCode)
	}

	var body struct {
		Results []struct {
			ID           string `json:"id"`
			MediaFormats struct {
				TinyGIF struct {
					URL string `json:"url"`
				} `json:"tinygif"`
			} `json:"media_formats"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode gif response: %v", ErrUpstream, err)
	}

	metrics.GIFSearches.Inc()
	results := make([]model.GIFResult, 0, len(body.Results))
	for _, r := range body.Results {
		results = append(results, model.GIFResult{ID: r.ID, PreviewURL: r.MediaFormats.TinyGIF.URL})
	}
	return results, nil
}
