package vabind

var (
	Version     = "v0.0.0-in-progress"
	Commit      = "unknown"
	LibvaPinned = "2.22.0"
)

// WrapperVersion returns the semantic version populated at build time via
// ldflags. In development it defaults to v0.0.0-in-progress.
func WrapperVersion() string {
	return Version
}

// UpstreamVersion returns the libva release the descriptor pins; without a
// descriptor it falls back to the release pinned at build time.
func UpstreamVersion(cfg *Config) string {
	if cfg != nil && cfg.Library.Version != "" {
		return cfg.Library.Version
	}
	return LibvaPinned
}
