package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIncompleteSite is returned by GeneratedSite.Validate.
var ErrIncompleteSite = errors.New("generated site is incomplete")

// SiteMetadata describes a generated site
type SiteMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Theme       string `json:"theme"`
	Responsive  bool   `json:"responsive"`
}

// GeneratedSite is the bundle returned by the generation provider
type GeneratedSite struct {
	HTML     string            `json:"html"`
	CSS      string            `json:"css"`
	JS       string            `json:"js"`
	Assets   map[string]string `json:"assets,omitempty"`
	Metadata SiteMetadata      `json:"metadata"`
}

// Validate checks the fields a site cannot be rendered without
func (s *GeneratedSite) Validate() error {
	var missing []string
	if strings.TrimSpace(s.HTML) == "" {
		missing = append(missing, "html")
	}
	if strings.TrimSpace(s.Metadata.Title) == "" {
		missing = append(missing, "metadata.title")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteSite, strings.Join(missing, ", "))
	}
	return nil
}

// Deployment is the result of publishing a site to the decentralized host
type Deployment struct {
	ObjectID          string `json:"objectId"`
	BlobID            string `json:"blobId"`
	URL               string `json:"url"`
	TransactionDigest string `json:"transactionDigest"`
}

// DeploymentStatus is returned when polling a deployed site
type DeploymentStatus struct {
	ObjectID string `json:"objectId"`
	Status   string `json:"status"`
	URL      string `json:"url,omitempty"`
}

// FileContent represents a file's content and metadata
type FileContent struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	IsBase64 bool   `json:"is_base64,omitempty"`
}
