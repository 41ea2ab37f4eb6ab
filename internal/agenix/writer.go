// Package agenix stores secrets in a nix-secrets repository through the
// agenix CLI, so config files can reference them by path.
package agenix

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultRuntimeDir is where agenix decrypts secrets on the target host.
const DefaultRuntimeDir = "/run/agenix"

// Writer encrypts one named secret into a nix-secrets repo.
type Writer struct {
	RepoPath   string
	RulesPath  string
	RuntimeDir string
	Recipients []string
	Exec       string
	SkipRules  bool
}

// Result tells where a secret was written and where it will be readable
// after deployment.
type Result struct {
	SecretPath  string
	RuntimePath string
}

// Write encrypts plaintext as name (".age" is appended when missing).
func (w Writer) Write(ctx context.Context, name string, plaintext []byte) (Result, error) {
	if w.RepoPath == "" {
		return Result{}, fmt.Errorf("agenix repo path is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Result{}, fmt.Errorf("agenix secret name is required")
	}
	fileName := name
	if !strings.HasSuffix(fileName, ".age") {
		fileName += ".age"
	}

	rules := w.rulesPath()
	if !w.SkipRules {
		recipients := w.Recipients
		if len(recipients) == 0 {
			var err error
			recipients, err = DefaultRecipients(rules)
			if err != nil {
				return Result{}, err
			}
		}
		if err := EnsureSecretEntry(rules, fileName, recipients); err != nil {
			return Result{}, err
		}
	}

	secretPath := filepath.Join(w.RepoPath, fileName)
	execName := w.Exec
	if execName == "" {
		execName = "agenix"
	}
	cmd := exec.CommandContext(ctx, execName, "-e", secretPath)
	cmd.Dir = w.RepoPath
	cmd.Env = append(os.Environ(),
		"RULES="+rules,
		"EDITOR=cp /dev/stdin",
	)
	cmd.Stdin = bytes.NewReader(plaintext)
	if output, err := cmd.CombinedOutput(); err != nil {
		return Result{}, fmt.Errorf("agenix: %w: %s", err, strings.TrimSpace(string(output)))
	}

	runtimeDir := w.RuntimeDir
	if runtimeDir == "" {
		runtimeDir = DefaultRuntimeDir
	}
	return Result{
		SecretPath:  secretPath,
		RuntimePath: filepath.Join(runtimeDir, strings.TrimSuffix(fileName, ".age")),
	}, nil
}

func (w Writer) rulesPath() string {
	if w.RulesPath != "" {
		return w.RulesPath
	}
	return filepath.Join(w.RepoPath, "secrets.nix")
}

// EnsureSecretEntry adds fileName to secrets.nix unless it is already there.
func EnsureSecretEntry(rulesPath, fileName string, recipients []string) error {
	info, err := os.Stat(rulesPath)
	if err != nil {
		return fmt.Errorf("stat secrets.nix: %w", err)
	}
	content, err := os.ReadFile(rulesPath)
	if err != nil {
		return fmt.Errorf("read secrets.nix: %w", err)
	}
	pattern := regexp.MustCompile(regexp.QuoteMeta("\""+fileName+"\"") + `\s*\.publicKeys`)
	if pattern.Match(content) {
		return nil
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients available for %s", fileName)
	}

	idx := strings.LastIndex(string(content), "\n}")
	if idx == -1 {
		return fmt.Errorf("secrets.nix missing closing brace")
	}
	entry := fmt.Sprintf("  %q.publicKeys = [ %s ];\n", fileName, strings.Join(recipients, " "))
	updated := string(content[:idx]) + "\n" + entry + string(content[idx:])
	return os.WriteFile(rulesPath, []byte(updated), info.Mode().Perm())
}

var recipientsPattern = regexp.MustCompile(`"printmon-[^"]+\.age"\s*\.publicKeys\s*=\s*\[([^\]]+)\]`)

// DefaultRecipients reuses the recipients of an existing printmon-* secret.
func DefaultRecipients(rulesPath string) ([]string, error) {
	content, err := os.ReadFile(rulesPath)
	if err != nil {
		return nil, fmt.Errorf("read secrets.nix: %w", err)
	}
	match := recipientsPattern.FindStringSubmatch(string(content))
	if len(match) < 2 {
		return nil, fmt.Errorf("no printmon recipients found in %s", rulesPath)
	}
	fields := strings.Fields(match[1])
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty recipient list in %s", rulesPath)
	}
	return fields, nil
}
