package embed

import "github.com/Aman-CERP/scry/internal/config"

// New builds the embedder a semantic source owns: the static embedder at
// the configured width, behind the query cache unless the cache is off.
func New(cfg config.EmbeddingsConfig) Embedder {
	static := NewStaticEmbedder(cfg.Dimensions)
	if cfg.CacheSize < 0 {
		return static
	}
	return NewCachedEmbedder(static, cfg.CacheSize)
}
