package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kilnhq/kilnd/internal/manifest"
)

// A deterministic identifier for a build's complete input set.
type Digest string

// Computes the digest for a recipe built from the given project root for
// the given platforms.
//
// All components are length-prefixed and sorted where ordering is not
// semantically meaningful (platforms, environment keys), so the digest is
// stable across runs and machines. Host copy sources are hashed by content;
// cross-stage sources are excluded because the steps that produce them are
// already part of the digest.
func RecipeDigest(r *manifest.Recipe, root string, platforms []string) (Digest, error) {
	h := sha256.New()

	sorted := append([]string{}, platforms...)
	sort.Strings(sorted)
	for _, p := range sorted {
		writeField(h, []byte(p))
	}

	for _, stage := range r.Stages {
		writeField(h, []byte(stage.Name))
		writeField(h, []byte(stage.From))
		writeField(h, []byte(strconv.FormatBool(stage.Transient)))

		if err := hashSteps(h, stage.Steps, root); err != nil {
			return "", err
		}
	}

	return Digest(hex.EncodeToString(h.Sum(nil))), nil
}

// Hashes a step list recursively.
func hashSteps(h hash.Hash, steps []manifest.Step, root string) error {
	for _, step := range steps {
		if err := hashStep(h, step, root); err != nil {
			return err
		}
	}
	return nil
}

// Hashes a single step, including the contents of host copy sources.
func hashStep(h hash.Hash, step manifest.Step, root string) error {
	writeField(h, []byte(step.Run))
	writeField(h, []byte(step.Copy))
	writeField(h, []byte(step.Shell))
	writeField(h, []byte(step.Workdir))

	keys := make([]string, 0, len(step.Env))
	for k := range step.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeField(h, []byte(k))
		writeField(h, []byte(step.Env[k]))
	}

	for _, port := range step.Expose {
		writeField(h, []byte(strconv.Itoa(port)))
	}
	for _, arg := range step.Command {
		writeField(h, []byte(arg))
	}

	if step.Copy != "" {
		if err := hashCopySource(h, step.Copy, root); err != nil {
			return err
		}
	}

	return hashSteps(h, step.Steps, root)
}

// Hashes the host source of a copy step by content.
//
// Cross-stage sources ("stage:path") are skipped. Directory sources are
// walked in lexical order with each file's relative path and contents
// included.
func hashCopySource(h hash.Hash, copyStr, root string) error {
	parts := strings.Fields(copyStr)
	if len(parts) != 2 {
		return fmt.Errorf("malformed copy %q", copyStr)
	}
	src := parts[0]

	// A colon before any path separator marks a cross-stage source.
	if i := strings.IndexByte(src, ':'); i > 0 && !strings.ContainsRune(src[:i], '/') {
		return nil
	}

	if !filepath.IsAbs(src) {
		src = filepath.Join(root, src)
	}

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("copy source %q: %w", src, err)
	}

	if !info.IsDir() {
		return hashFile(h, src, filepath.Base(src))
	}

	// WalkDir visits entries in lexical order, which keeps the digest
	// deterministic without extra sorting.
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		return hashFile(h, path, filepath.ToSlash(rel))
	})
}

// Hashes a single file's name and contents.
func hashFile(h hash.Hash, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	writeField(h, []byte(name))

	// Content is streamed without a length prefix; the name field written
	// above delimits entries.
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	return nil
}

// Writes a length-prefixed field to the hash, preventing ambiguity between
// adjacent components.
func writeField(h hash.Hash, data []byte) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(data)))
	h.Write(length[:])
	h.Write(data)
}
