// Package oracle talks to the remote audio-fingerprint identification
// service. The pipeline treats it as an opaque verdict source: matched with
// a track, not matched, or failed.
package oracle

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"copyscan/pkg/models"
)

var (
	// ErrNetwork marks a transport failure. Mid-probe it is treated as
	// "no match"; callers decide whether it aborts the run.
	ErrNetwork = errors.New("oracle network error")
	// ErrProtocol marks an unexpected response shape or an API-level error
	// code. It surfaces as a run-level error.
	ErrProtocol = errors.New("oracle protocol error")
)

const defaultTimeout = 30 * time.Second

// Client queries an ACRCloud-compatible identification endpoint.
type Client struct {
	accessKey    string
	accessSecret string

	// BaseURL is the full identify endpoint. Exposed so tests can point the
	// client at a local server.
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient builds a client for the given host, e.g. "identify-us.acrcloud.com".
func NewClient(accessKey, accessSecret, host string) *Client {
	return &Client{
		accessKey:    accessKey,
		accessSecret: accessSecret,
		BaseURL:      fmt.Sprintf("https://%s/v1/identify", host),
		HTTPClient:   &http.Client{Timeout: defaultTimeout},
	}
}

// Identify submits a short audio clip and returns the oracle's verdict.
func (c *Client) Identify(ctx context.Context, clipPath string) (*models.Verdict, error) {
	clipData, err := os.ReadFile(clipPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading clip: %v", ErrNetwork, err)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature := c.sign(timestamp)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("sample", "sample.mp3")
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrNetwork, err)
	}
	if _, err := part.Write(clipData); err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrNetwork, err)
	}
	for field, value := range map[string]string{
		"access_key":        c.accessKey,
		"timestamp":         timestamp,
		"signature":         signature,
		"data_type":         "audio",
		"signature_version": "1",
	} {
		if err := writer.WriteField(field, value); err != nil {
			return nil, fmt.Errorf("%w: building request: %v", ErrNetwork, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrNetwork, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrNetwork, err)
	}
	return parseResponse(raw)
}

// sign produces the request signature: base64(HMAC-SHA1(secret, canonical string)).
func (c *Client) sign(timestamp string) string {
	canonical := fmt.Sprintf("POST\n/v1/identify\n%s\naudio\n1\n%s", c.accessKey, timestamp)
	mac := hmac.New(sha1.New, []byte(c.accessSecret))
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type acrStatus struct {
	Code *int   `json:"code"`
	Msg  string `json:"msg"`
}

type acrMusic struct {
	Title string `json:"title"`
	Album struct {
		Name string `json:"name"`
	} `json:"album"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	DurationMs int    `json:"duration_ms"`
	ACRID      string `json:"acrid"`
}

type acrResponse struct {
	Status   *acrStatus `json:"status"`
	Code     *int       `json:"code"`
	Message  string     `json:"message"`
	Metadata struct {
		Music []acrMusic `json:"music"`
	} `json:"metadata"`
}

// parseResponse maps the service's two observed response shapes (status
// object or top-level code) onto a Verdict. Code 0 is a match, code 1 is a
// clean miss, anything else is an API error.
func parseResponse(raw []byte) (*models.Verdict, error) {
	var resp acrResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrProtocol, err)
	}

	code := resp.Code
	msg := resp.Message
	if resp.Status != nil {
		code = resp.Status.Code
		if resp.Status.Msg != "" {
			msg = resp.Status.Msg
		}
	}
	if code == nil {
		return nil, fmt.Errorf("%w: response carries no status code", ErrProtocol)
	}

	switch *code {
	case 0:
		if len(resp.Metadata.Music) == 0 {
			return nil, fmt.Errorf("%w: success code with no music metadata", ErrProtocol)
		}
		music := resp.Metadata.Music[0]
		artist := "Unknown"
		if len(music.Artists) > 0 {
			artist = music.Artists[0].Name
		}
		album := music.Album.Name
		if album == "" {
			album = "Unknown"
		}
		return &models.Verdict{
			Matched: true,
			Track: &models.Track{
				Title:           music.Title,
				Artist:          artist,
				Album:           album,
				DurationSeconds: music.DurationMs / 1000,
				TrackID:         music.ACRID,
			},
		}, nil
	case 1:
		return &models.Verdict{Matched: false}, nil
	default:
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("%w: API error (%d): %s", ErrProtocol, *code, msg)
	}
}
