package storage

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/dentora/dentsync/internal/errs"
)

// S3Config holds what is needed to sign SigV4 requests against an
// S3-compatible endpoint (AWS, R2, MinIO).
type S3Config struct {
	Endpoint   string
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	HTTPClient *http.Client
}

// S3Client implements ObjectStore with hand-signed SigV4 requests.
type S3Client struct {
	cfg    S3Config
	client *http.Client
}

// NewS3Client validates the configuration and returns a ready client.
func NewS3Client(cfg S3Config) (*S3Client, error) {
	switch {
	case strings.TrimSpace(cfg.Endpoint) == "":
		return nil, errors.New("storage: missing endpoint")
	case !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://"):
		return nil, errors.New("storage: endpoint must include http/https scheme")
	case strings.TrimSpace(cfg.Region) == "":
		return nil, errors.New("storage: missing region")
	case strings.TrimSpace(cfg.Bucket) == "":
		return nil, errors.New("storage: missing bucket")
	case strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "":
		return nil, errors.New("storage: missing credentials")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &S3Client{cfg: cfg, client: client}, nil
}

// Upload PUTs the object into the bucket.
func (c *S3Client) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	if strings.TrimSpace(input.Key) == "" {
		return nil, errors.New("storage: empty object key")
	}
	if len(input.Body) == 0 {
		return nil, errors.New("storage: empty body")
	}
	contentType := input.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	target := c.objectURL(input.Key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(input.Body))
	if err != nil {
		return nil, err
	}

	payloadHash := sha256.Sum256(input.Body)
	payloadHex := hex.EncodeToString(payloadHash[:])
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(input.Body))
	req.Header.Set("x-amz-content-sha256", payloadHex)

	c.sign(req, payloadHex, time.Now().UTC())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: upload %d: %s", errs.ErrRemoteUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return nil, fmt.Errorf("storage: upload failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return &UploadResult{
		URL:  target,
		ETag: strings.Trim(resp.Header.Get("ETag"), `"`),
	}, nil
}

// PresignGet returns a time-limited GET URL signed in the query string, so the
// UI can hand the link straight to an <img> tag or viewer.
func (c *S3Client) PresignGet(key string, expirySeconds int) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("storage: empty object key")
	}
	if expirySeconds <= 0 {
		expirySeconds = 300
	}

	u, err := url.Parse(c.objectURL(key))
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	amzDate := now.Format("20060102T150405Z")
	dateStamp := now.Format("20060102")
	scope := fmt.Sprintf("%s/%s/s3/aws4_request", dateStamp, c.cfg.Region)

	q := url.Values{}
	q.Set("X-Amz-Algorithm", "AWS4-HMAC-SHA256")
	q.Set("X-Amz-Credential", c.cfg.AccessKey+"/"+scope)
	q.Set("X-Amz-Date", amzDate)
	q.Set("X-Amz-Expires", fmt.Sprintf("%d", expirySeconds))
	q.Set("X-Amz-SignedHeaders", "host")

	canonical := strings.Join([]string{
		http.MethodGet,
		canonicalURI(u.Path),
		canonicalQueryString(q),
		"host:" + u.Host + "\n",
		"host",
		"UNSIGNED-PAYLOAD",
	}, "\n")
	hashed := sha256.Sum256([]byte(canonical))

	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		scope,
		hex.EncodeToString(hashed[:]),
	}, "\n")
	sig := hmacSHA256(c.signingKey(dateStamp), []byte(stringToSign))
	q.Set("X-Amz-Signature", hex.EncodeToString(sig))

	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *S3Client) objectURL(key string) string {
	endpoint := strings.TrimRight(c.cfg.Endpoint, "/")
	escaped := (&url.URL{Path: strings.TrimLeft(key, "/")}).EscapedPath()
	return fmt.Sprintf("%s/%s/%s", endpoint, c.cfg.Bucket, escaped)
}

// sign adds a SigV4 Authorization header for header-signed requests.
func (c *S3Client) sign(req *http.Request, payloadHash string, now time.Time) {
	amzDate := now.Format("20060102T150405Z")
	dateStamp := now.Format("20060102")

	req.Header.Set("x-amz-date", amzDate)
	req.Header.Set("Host", req.URL.Host)

	headers, signedHeaders := canonicalHeaders(req.Header)
	canonical := strings.Join([]string{
		req.Method,
		canonicalURI(req.URL.Path),
		canonicalQueryString(req.URL.Query()),
		headers,
		signedHeaders,
		payloadHash,
	}, "\n")
	hashed := sha256.Sum256([]byte(canonical))

	scope := fmt.Sprintf("%s/%s/s3/aws4_request", dateStamp, c.cfg.Region)
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		scope,
		hex.EncodeToString(hashed[:]),
	}, "\n")
	sig := hmacSHA256(c.signingKey(dateStamp), []byte(stringToSign))

	req.Header.Set("Authorization", fmt.Sprintf(
		"AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		c.cfg.AccessKey, scope, signedHeaders, hex.EncodeToString(sig),
	))
}

func (c *S3Client) signingKey(dateStamp string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+c.cfg.SecretKey), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(c.cfg.Region))
	kService := hmacSHA256(kRegion, []byte("s3"))
	return hmacSHA256(kService, []byte("aws4_request"))
}

func canonicalURI(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return uriEncode(path, false)
}

func canonicalQueryString(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		vals := append([]string(nil), values[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			parts = append(parts, uriEncode(k, true)+"="+uriEncode(v, true))
		}
	}
	return strings.Join(parts, "&")
}

func canonicalHeaders(h http.Header) (string, string) {
	merged := make(map[string]string)
	for k, vals := range h {
		lower := strings.ToLower(k)
		if lower == "authorization" {
			continue
		}
		trimmed := make([]string, 0, len(vals))
		for _, v := range vals {
			trimmed = append(trimmed, strings.TrimSpace(v))
		}
		merged[lower] = strings.Join(trimmed, ",")
	}
	if _, ok := merged["host"]; !ok {
		merged["host"] = h.Get("Host")
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + ":" + merged[k]
	}
	return strings.Join(lines, "\n") + "\n", strings.Join(keys, ";")
}

func uriEncode(input string, encodeSlash bool) string {
	var b strings.Builder
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9'),
			c == '-' || c == '_' || c == '.' || c == '~':
			b.WriteByte(c)
		case c == '/' && !encodeSlash:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
