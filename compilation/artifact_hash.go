package compilation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crytic/contest/compilation/types"
	"github.com/crytic/contest/logging"
	"github.com/crytic/contest/logging/colors"
	"golang.org/x/exp/slices"
)

// ArtifactHashCacheFileName is the name of the file used to store the artifact hash.
const ArtifactHashCacheFileName = ".contest-artifact-hash"

// ArtifactHashCache stores the hash of the build artifacts tested by the previous run.
type ArtifactHashCache struct {
	// Hash is the SHA-256 hash of the compiled bytecode.
	Hash string `json:"hash"`
	// Timestamp is when the hash was computed.
	Timestamp time.Time `json:"timestamp"`
}

// ComputeArtifactHash computes a SHA-256 hash over the provided contracts' names and bytecode. Contracts are sorted
// by fully qualified name first, so the hash does not depend on load order.
func ComputeArtifactHash(contracts []*types.CompiledContract) string {
	sorted := slices.Clone(contracts)
	slices.SortFunc(sorted, func(a, b *types.CompiledContract) int {
		return strings.Compare(a.FullyQualifiedName(), b.FullyQualifiedName())
	})

	hasher := sha256.New()
	for _, c := range sorted {
		hasher.Write([]byte(c.FullyQualifiedName()))
		hasher.Write([]byte(c.InitBytecodeHex))
		hasher.Write([]byte(c.RuntimeBytecodeHex))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// LoadArtifactHashCache loads the artifact hash cache from the specified directory.
// Returns nil if the cache file does not exist or cannot be parsed.
func LoadArtifactHashCache(directory string) *ArtifactHashCache {
	cachePath := filepath.Join(directory, ArtifactHashCacheFileName)
	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil
	}

	var cache ArtifactHashCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil
	}

	return &cache
}

// SaveArtifactHashCache saves the artifact hash cache to the specified directory.
// Returns an error if the cache cannot be written.
func SaveArtifactHashCache(directory string, cache *ArtifactHashCache) error {
	// Ensure the directory exists
	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	cachePath := filepath.Join(directory, ArtifactHashCacheFileName)
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	if err := os.WriteFile(cachePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	return nil
}

// NotifyArtifactHashStatus compares the current artifact hash with a cached hash
// and logs whether the artifacts changed since the last run. The cache in cacheDirectory is updated with the new
// hash, which is also returned.
func NotifyArtifactHashStatus(
	contracts []*types.CompiledContract,
	cacheDirectory string,
	logger *logging.Logger,
) string {
	if len(contracts) == 0 {
		return ""
	}

	currentHash := ComputeArtifactHash(contracts)

	cachedHash := LoadArtifactHashCache(cacheDirectory)

	if cachedHash == nil || cachedHash.Hash != currentHash {
		logger.Info(
			colors.Bold, "artifacts: ", colors.Reset,
			"Testing a ", colors.GreenBold, "new", colors.Reset, " set of build artifacts",
		)
	} else {
		timeSince := time.Since(cachedHash.Timestamp)
		logger.Warn(
			colors.Bold, "artifacts: ", colors.Reset,
			"Testing the ", colors.YellowBold, "same", colors.Reset,
			" build artifacts as the previous run (last run: ", formatDuration(timeSince), " ago)",
		)
	}

	newCache := &ArtifactHashCache{
		Hash:      currentHash,
		Timestamp: time.Now(),
	}
	if err := SaveArtifactHashCache(cacheDirectory, newCache); err != nil {
		logger.Warn("Failed to save artifact hash cache", err)
	}
	return currentHash
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
