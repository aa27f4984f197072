// Package models resolves and fetches whisper ggml model files.
package models

import (
	"fmt"
	"sort"
	"strings"
)

// baseURL is where ggml model files are fetched from. Overridable for
// tests.
var baseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// Model describes one downloadable whisper model.
type Model struct {
	Size string // config name, e.g. "base.en"
	File string // on-disk file name, e.g. "ggml-base.en.bin"
	MB   int    // approximate download size
}

// URL returns the download URL for the model file.
func (m Model) URL() string { return baseURL + m.File }

// catalog lists the whisper.cpp models known to this tool.
var catalog = []Model{
	{Size: "tiny", File: "ggml-tiny.bin", MB: 78},
	{Size: "tiny.en", File: "ggml-tiny.en.bin", MB: 78},
	{Size: "base", File: "ggml-base.bin", MB: 148},
	{Size: "base.en", File: "ggml-base.en.bin", MB: 148},
	{Size: "small", File: "ggml-small.bin", MB: 488},
	{Size: "small.en", File: "ggml-small.en.bin", MB: 488},
	{Size: "medium", File: "ggml-medium.bin", MB: 1530},
	{Size: "medium.en", File: "ggml-medium.en.bin", MB: 1530},
	{Size: "large-v2", File: "ggml-large-v2.bin", MB: 3090},
	{Size: "large-v3", File: "ggml-large-v3.bin", MB: 3100},
	{Size: "large-v3-turbo", File: "ggml-large-v3-turbo.bin", MB: 1620},
}

// Resolve maps a config model size to its catalog entry.
func Resolve(size string) (Model, error) {
	size = strings.ToLower(strings.TrimSpace(size))
	for _, m := range catalog {
		if m.Size == size {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("unknown whisper model %q (available: %s)", size, strings.Join(Sizes(), ", "))
}

// Sizes returns all known model sizes, sorted.
func Sizes() []string {
	out := make([]string, len(catalog))
	for i, m := range catalog {
		out[i] = m.Size
	}
	sort.Strings(out)
	return out
}
