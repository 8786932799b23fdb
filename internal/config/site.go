package config

import (
	"maps"
	"time"
)

// SiteConfig holds request customisation for a single host.
type SiteConfig struct {
	// Cookie is sent as the Cookie header.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are added to every request to the host.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// Defaults is the defaults section of the config file. It carries run
// settings in addition to the request customisation applied to all hosts.
type Defaults struct {
	SiteConfig `yaml:",inline"`

	Destination string        `yaml:"destination,omitempty"`
	Parallel    int           `yaml:"parallel,omitempty"`
	Types       []string      `yaml:"types,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	UserAgent   string        `yaml:"userAgent,omitempty"`
	MaxBodySize int64         `yaml:"maxBodySize,omitempty"`
	Proxy       string        `yaml:"proxy,omitempty"`
}

// File represents the structure of the .miles configuration file.
type File struct {
	// Defaults applies to every crawl and every host.
	Defaults Defaults `yaml:"defaults,omitempty"`

	// Sites maps host names (e.g. "example.com") to overrides.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// NewFile returns an empty File.
func NewFile() *File {
	return &File{Sites: make(map[string]SiteConfig)}
}

// GetSiteConfig returns the configuration for host, with the site entry
// merged over the defaults. Site headers replace default headers of the
// same name; the result never aliases the file's maps.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := SiteConfig{
		Cookie:  cf.Defaults.Cookie,
		Headers: maps.Clone(cf.Defaults.Headers),
	}

	site, ok := cf.Sites[host]
	if !ok {
		return result
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	return result
}
