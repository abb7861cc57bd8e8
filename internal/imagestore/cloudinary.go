package imagestore

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"flatnest/internal/config"
)

// cloudinaryClient talks to the Cloudinary upload API with signed requests.
type cloudinaryClient struct {
	cloudName string
	apiKey    string
	apiSecret string
	folder    string
	http      *http.Client
}

// NewCloudinaryClient builds a Client from the storage section of the config.
func NewCloudinaryClient(cfg *config.Config) Client {
	return &cloudinaryClient{
		cloudName: cfg.StorageCloudName,
		apiKey:    cfg.StorageAPIKey,
		apiSecret: cfg.StorageAPISecret,
		folder:    cfg.StorageFolder,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

type cloudinaryResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Bytes     int64  `json:"bytes"`
	Result    string `json:"result"`
	Error     struct {
		Message string `json:"message"`
	} `json:"error"`
}

// sign builds the SHA1 request signature over the sorted parameter string plus
// the API secret, as the upload API requires.
func (c *cloudinaryClient) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	// Parameters must be sorted alphabetically before signing
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	payload := strings.Join(pairs, "&") + c.apiSecret
	return fmt.Sprintf("%x", sha1.Sum([]byte(payload)))
}

func (c *cloudinaryClient) post(ctx context.Context, endpoint string, form url.Values) (*cloudinaryResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	var parsed cloudinaryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unexpected storage response (status %d): %w", res.StatusCode, err)
	}
	if parsed.Error.Message != "" {
		return nil, fmt.Errorf("storage error (status %d): %s", res.StatusCode, parsed.Error.Message)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("storage request failed with status %d", res.StatusCode)
	}
	return &parsed, nil
}

func (c *cloudinaryClient) Upload(ctx context.Context, data []byte, publicID string) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}

	finalID := publicID
	if c.folder != "" {
		finalID = c.folder + "/" + publicID
	}
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	form := url.Values{}
	form.Add("file", "data:image/webp;base64,"+base64.StdEncoding.EncodeToString(data))
	form.Add("api_key", c.apiKey)
	form.Add("public_id", finalID)
	form.Add("timestamp", timestamp)
	form.Add("signature", c.sign(map[string]string{
		"public_id": finalID,
		"timestamp": timestamp,
	}))

	endpoint := "https://api.cloudinary.com/v1_1/" + c.cloudName + "/image/upload"
	parsed, err := c.post(ctx, endpoint, form)
	if err != nil {
		return nil, err
	}

	return &UploadResult{
		URL:      parsed.SecureURL,
		PublicID: parsed.PublicID,
		Bytes:    parsed.Bytes,
	}, nil
}

func (c *cloudinaryClient) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}

	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	form := url.Values{}
	form.Add("api_key", c.apiKey)
	form.Add("public_id", publicID)
	form.Add("timestamp", timestamp)
	form.Add("signature", c.sign(map[string]string{
		"public_id": publicID,
		"timestamp": timestamp,
	}))

	endpoint := "https://api.cloudinary.com/v1_1/" + c.cloudName + "/image/destroy"
	parsed, err := c.post(ctx, endpoint, form)
	if err != nil {
		return err
	}
	// "not found" counts as deleted
	if parsed.Result != "ok" && parsed.Result != "not found" {
		return fmt.Errorf("storage destroy returned %q", parsed.Result)
	}
	return nil
}
