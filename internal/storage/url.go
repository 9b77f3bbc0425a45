package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// PublicPrefix is the path under which objects are served without auth
const PublicPrefix = "/storage/v1/object/public/"

// PublicURL returns the unauthenticated URL of an object
func PublicURL(baseURL, bucket, key string) string {
	return strings.TrimRight(baseURL, "/") + PublicPrefix + bucket + "/" + key
}

// ParsePublicURL recovers bucket and key from a URL built by PublicURL
func ParsePublicURL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid object url: %w", err)
	}
	idx := strings.Index(u.Path, PublicPrefix)
	if idx < 0 {
		return "", "", fmt.Errorf("not a public object url: %s", raw)
	}
	bucket, key, ok := strings.Cut(u.Path[idx+len(PublicPrefix):], "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("object url has no key: %s", raw)
	}
	if _, err := CleanKey(bucket, key); err != nil {
		return "", "", err
	}
	return bucket, key, nil
}
