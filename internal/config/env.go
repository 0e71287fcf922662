package config

import (
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// maxEnvAscent bounds how many parent directories are searched for .env.
const maxEnvAscent = 3

// LoadEnv loads a .env file into the process environment without
// overriding variables that are already set, and returns the path it
// loaded ("" when none). Explicit paths are used as given; otherwise the
// working directory, its parents up to the project root, and the
// executable's directory are probed in that order.
func LoadEnv(paths ...string) string {
	if len(paths) > 0 {
		if err := godotenv.Load(paths...); err != nil {
			log.Printf("[Config] .env %v not loaded: %v", paths, err)
			return ""
		}
		log.Printf("[Config] Loaded .env from %v", paths)
		return paths[0]
	}

	candidates := resolveEnvCandidates()
	for _, p := range candidates {
		if !isFile(p) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			log.Printf("[Config] .env %s not loaded: %v", p, err)
			return ""
		}
		log.Printf("[Config] Loaded .env from %s", p)
		return p
	}
	log.Printf("[Config] No .env found in %d locations, using process environment", len(candidates))
	return ""
}

// resolveEnvCandidates lists .env paths to probe, nearest first. The upward
// walk from the working directory stops at the first directory that looks
// like a project root (configs/ or go.mod present).
func resolveEnvCandidates() []string {
	var out []string
	seen := map[string]bool{}
	add := func(dir string) {
		p := filepath.Join(filepath.Clean(dir), ".env")
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	if dir, err := os.Getwd(); err == nil {
		for i := 0; i <= maxEnvAscent; i++ {
			add(dir)
			if isProjectRoot(dir) {
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		add(filepath.Dir(exe))
	}
	return out
}

func isProjectRoot(dir string) bool {
	if st, err := os.Stat(filepath.Join(dir, "configs")); err == nil && st.IsDir() {
		return true
	}
	return isFile(filepath.Join(dir, "go.mod"))
}

func isFile(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}
