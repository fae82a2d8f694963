package config

import "maps"

// SiteConfig holds per-host crawl settings.
type SiteConfig struct {
	// Cookie is sent with every request, e.g. "name=value; other=value".
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are added to every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the global depth when non-zero.
	Depth int `yaml:"depth,omitempty"`

	// AllowedHosts restricts crawls seeded on this host.
	AllowedHosts []string `yaml:"allowedHosts,omitempty"`

	// IgnorePatterns are glob patterns of URL paths never followed.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns, when set, are the only URL paths followed.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File is the structure of the .hostcrawl configuration file.
type File struct {
	// Sites maps seed hosts (e.g. "docs.example.com") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the defaults merged with the settings for host.
// Scalar values and lists from the site replace the defaults; headers are
// merged key by key.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	site, ok := cf.Sites[host]
	if !ok {
		return result
	}

	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if site.Depth != 0 {
		result.Depth = site.Depth
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if len(site.AllowedHosts) > 0 {
		result.AllowedHosts = site.AllowedHosts
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}
	return result
}

// SiteFor returns the settings for host, or the zero SiteConfig when no
// configuration file was loaded.
func (c *Config) SiteFor(host string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(host)
}
