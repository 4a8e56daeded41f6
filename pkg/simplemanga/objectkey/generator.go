package objectkey

import (
	"fmt"
	"path"
	"strings"
)

// Generator maps image IDs to storage keys and back. Backends that lay
// objects out as paths (filesystem, S3) use it; ID must invert Key.
type Generator interface {
	// Key returns the storage key for an image ID
	Key(imageID string) string
	// ID returns the image ID stored under key, or false when key was not
	// produced by this generator
	ID(key string) (string, bool)
}

// FlatGenerator stores every image directly under a prefix:
// images/{id}
type FlatGenerator struct {
	Prefix string
}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{Prefix: "images"}
}

func (g *FlatGenerator) Key(imageID string) string {
	return fmt.Sprintf("%s/%s", g.Prefix, sanitizePathComponent(imageID))
}

func (g *FlatGenerator) ID(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, g.Prefix+"/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// GitLikeGenerator provides Git-style sharded storage:
// images/objects/{shard}/{id}
//
// The shard is taken from the end of the ID. Image IDs are time-ordered
// UUIDs whose leading characters change slowly, while the tail is random.
type GitLikeGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
	Prefix      string
}

func NewGitLikeGenerator() *GitLikeGenerator {
	return &GitLikeGenerator{
		ShardLength: 2,
		Prefix:      "images/objects",
	}
}

func (g *GitLikeGenerator) Key(imageID string) string {
	id := sanitizePathComponent(imageID)
	compact := strings.ReplaceAll(id, "-", "")

	shardLength := g.ShardLength
	if shardLength <= 0 {
		shardLength = 2
	}
	if len(compact) < shardLength {
		shardLength = len(compact)
	}
	shard := compact[len(compact)-shardLength:]
	if shard == "" {
		shard = "_"
	}
	return fmt.Sprintf("%s/%s/%s", g.Prefix, shard, id)
}

func (g *GitLikeGenerator) ID(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, g.Prefix+"/")
	if !ok {
		return "", false
	}
	shard, id, ok := strings.Cut(rest, "/")
	if !ok || shard == "" || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// NewRecommendedGenerator returns the recommended generator for new installations
func NewRecommendedGenerator() Generator {
	return NewGitLikeGenerator()
}

// Dir returns the directory part of a key.
func Dir(key string) string {
	return path.Dir(key)
}

func sanitizePathComponent(component string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(component)
}
