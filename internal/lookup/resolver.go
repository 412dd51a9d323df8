// Package lookup resolves the git repository, branch and pull request state
// of a pane's working directory.
//
// Lookups shell out to git and gh, which is slow enough to matter when many
// panes are polled every few seconds, so every result goes through a
// bounded TTL cache. Failures never propagate: a pane whose lookup fails
// simply has no branch and no PR.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/timvw/pane-relay/internal/cache"
	"github.com/timvw/pane-relay/internal/otel"
)

// Repo is the git repository a directory belongs to.
// Zero value means "not in a repository" or "unknown".
type Repo struct {
	Root   string
	Branch string
}

// Config controls caching and timeouts. Zero TTLs disable caching.
type Config struct {
	BranchTTL    time.Duration
	PRTTL        time.Duration
	MaxEntries   int
	Timeout      time.Duration
	SingleFlight bool
}

// Resolver answers repo, branch and PR questions through two caches:
// one keyed by directory, one holding a per-repo snapshot of open PR
// head branches.
type Resolver struct {
	runner  Runner
	cfg     Config
	repos   *cache.Cache[Repo]
	prs     *cache.Cache[map[string]bool]
	metrics *otel.Metrics

	// Warnings receives one line per unexpected lookup failure.
	Warnings io.Writer
}

// NewResolver creates a Resolver. metrics may be nil.
func NewResolver(runner Runner, cfg Config, metrics *otel.Metrics, opts ...cache.Option) *Resolver {
	if runner == nil {
		runner = ExecRunner{}
	}
	repoOpts := append([]cache.Option{cache.WithObserver("repo", metrics)}, opts...)
	prOpts := append([]cache.Option{cache.WithObserver("pr", metrics)}, opts...)
	if cfg.SingleFlight {
		repoOpts = append(repoOpts, cache.WithSingleFlight())
		prOpts = append(prOpts, cache.WithSingleFlight())
	}
	return &Resolver{
		runner:   runner,
		cfg:      cfg,
		repos:    cache.New[Repo](cfg.MaxEntries, repoOpts...),
		prs:      cache.New[map[string]bool](cfg.MaxEntries, prOpts...),
		metrics:  metrics,
		Warnings: os.Stderr,
	}
}

// Repo returns the repository root and current branch for dir.
func (r *Resolver) Repo(ctx context.Context, dir string) Repo {
	if dir == "" {
		return Repo{}
	}
	repo, _ := r.repos.Fetch(ctx, cache.NormalizeKey(dir), r.cfg.BranchTTL, func(ctx context.Context) (Repo, error) {
		return r.resolveRepo(ctx, dir), nil
	})
	return repo
}

// HasPR reports whether branch has an open pull request in the repository
// rooted at root.
func (r *Resolver) HasPR(ctx context.Context, root, branch string) bool {
	if root == "" || branch == "" {
		return false
	}
	open, _ := r.prs.Fetch(ctx, cache.NormalizeKey(root), r.cfg.PRTTL, func(ctx context.Context) (map[string]bool, error) {
		return r.resolvePRs(ctx, root), nil
	})
	return open[branch]
}

func (r *Resolver) resolveRepo(ctx context.Context, dir string) Repo {
	out, err := r.run(ctx, dir, "git", "rev-parse", "--show-toplevel", "--abbrev-ref", "HEAD")
	if err != nil {
		// Not a repository: git exits non-zero, nothing to report.
		var cmdErr *CommandError
		if !errors.As(err, &cmdErr) {
			r.warn(ctx, "git", dir, err)
		}
		return Repo{}
	}
	return parseRevParse(out)
}

// parseRevParse reads the two-line output of
// git rev-parse --show-toplevel --abbrev-ref HEAD.
func parseRevParse(out []byte) Repo {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	var repo Repo
	if len(lines) > 0 {
		repo.Root = strings.TrimSpace(lines[0])
	}
	if len(lines) > 1 {
		repo.Branch = strings.TrimSpace(lines[1])
	}
	// Detached HEAD has no branch.
	if repo.Branch == "HEAD" {
		repo.Branch = ""
	}
	return repo
}

func (r *Resolver) resolvePRs(ctx context.Context, root string) map[string]bool {
	out, err := r.run(ctx, root, "gh", "pr", "list", "--state", "open", "--limit", "200", "--json", "headRefName")
	if err != nil {
		r.warn(ctx, "gh", root, err)
		return map[string]bool{}
	}
	open, err := parsePRList(out)
	if err != nil {
		r.warn(ctx, "gh", root, err)
		return map[string]bool{}
	}
	return open
}

func parsePRList(out []byte) (map[string]bool, error) {
	var prs []struct {
		HeadRefName string `json:"headRefName"`
	}
	if err := json.Unmarshal(out, &prs); err != nil {
		return nil, fmt.Errorf("decode gh pr list: %w", err)
	}
	open := make(map[string]bool, len(prs))
	for _, pr := range prs {
		if pr.HeadRefName != "" {
			open[pr.HeadRefName] = true
		}
	}
	return open, nil
}

func (r *Resolver) run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}
	return r.runner.Run(ctx, dir, name, args...)
}

func (r *Resolver) warn(ctx context.Context, lookup, dir string, err error) {
	r.metrics.RecordLookupFailure(ctx, lookup)
	if r.Warnings != nil {
		fmt.Fprintf(r.Warnings, "warning: %s lookup in %s failed: %v\n", lookup, dir, err)
	}
}
