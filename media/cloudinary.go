package media

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Asset is an uploaded media object.
type Asset struct {
	URL      string
	PublicID string
}

// Profile holds the fixed upload options applied to every upload.
type Profile struct {
	UploadPreset string
	Folder       string
}

// Credentials selects how the Cloudinary client is configured. URL wins
// when set.
type Credentials struct {
	URL       string
	CloudName string
	APIKey    string
	APISecret string
}

type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// Client is a stateless wrapper around the Cloudinary upload API. It does
// not retry.
type Client struct {
	api     uploadAPI
	profile Profile
}

func NewClient(creds Credentials, profile Profile) (*Client, error) {
	var (
		cld *cloudinary.Cloudinary
		err error
	)
	switch {
	case creds.URL != "":
		cld, err = cloudinary.NewFromURL(creds.URL)
	case creds.CloudName != "" && creds.APIKey != "" && creds.APISecret != "":
		cld, err = cloudinary.NewFromParams(creds.CloudName, creds.APIKey, creds.APISecret)
	default:
		return nil, errors.New("cloudinary credentials are not configured")
	}
	if err != nil {
		return nil, fmt.Errorf("cloudinary configuration error: %w", err)
	}

	return &Client{api: &cld.Upload, profile: profile}, nil
}

func newClientWithAPI(api uploadAPI, profile Profile) *Client {
	return &Client{api: api, profile: profile}
}

// Upload sends inline media data (a data URI, remote URL or base64 payload)
// to the asset host.
func (c *Client) Upload(ctx context.Context, data string) (*Asset, error) {
	if strings.TrimSpace(data) == "" {
		return nil, errors.New("no media data provided")
	}

	params := uploader.UploadParams{
		UploadPreset: c.profile.UploadPreset,
		Folder:       c.profile.Folder,
	}

	result, err := c.api.Upload(ctx, data, params)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.New("empty upload response")
	}
	if result.Error.Message != "" {
		return nil, errors.New(result.Error.Message)
	}

	url := result.SecureURL
	if url == "" {
		url = result.URL
	}
	if url == "" {
		return nil, errors.New("upload response has no url")
	}

	return &Asset{URL: url, PublicID: result.PublicID}, nil
}

// Destroy removes the object with publicID. A "not found" answer is not an
// error: the object is gone either way.
func (c *Client) Destroy(ctx context.Context, publicID string) error {
	if publicID == "" {
		return errors.New("empty public id")
	}

	result, err := c.api.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if result.Error.Message != "" {
		return errors.New(result.Error.Message)
	}
	return nil
}

// PublicIDFromURL derives the public identifier of a hosted object: the path
// after the delivery type and optional version, with the extension of the
// last segment removed. Folders are part of the identifier.
//
//	https://res.cloudinary.com/demo/image/upload/v1658323985/tycxbzk2yckn8cwyn0j7.png
//	-> tycxbzk2yckn8cwyn0j7
//	https://res.cloudinary.com/demo/image/upload/v1658323985/memories/abc.png
//	-> memories/abc
//
// URLs from other hosts fall back to the last path segment.
func PublicIDFromURL(url string) string {
	if url == "" {
		return ""
	}
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	url = strings.TrimRight(url, "/")

	var segments []string
	if i := strings.Index(url, uploadMarker); i >= 0 {
		segments = strings.Split(url[i+len(uploadMarker):], "/")
		if len(segments) > 1 && isVersion(segments[0]) {
			segments = segments[1:]
		}
	} else {
		last := path.Base(url)
		if last == "." || last == "/" {
			return ""
		}
		segments = []string{last}
	}

	last := segments[len(segments)-1]
	if i := strings.Index(last, "."); i >= 0 {
		segments[len(segments)-1] = last[:i]
	}
	return strings.Join(segments, "/")
}

const uploadMarker = "/upload/"

func isVersion(segment string) bool {
	if len(segment) < 2 || segment[0] != 'v' {
		return false
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ErrNotConfigured is returned by Unconfigured.
var ErrNotConfigured = errors.New("media storage is not configured")

// Unconfigured stands in for Client when no credentials are set. Posts
// without media still work.
type Unconfigured struct{}

func (Unconfigured) Upload(context.Context, string) (*Asset, error) { return nil, ErrNotConfigured }

func (Unconfigured) Destroy(context.Context, string) error { return ErrNotConfigured }
