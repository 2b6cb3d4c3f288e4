package match

import (
	"strings"

	radix "github.com/hashicorp/go-immutable-radix"

	"github.com/linkshift/linkshift/internal/rules"
)

// Index is an immutable, prepared rule snapshot. Path matchers are scanned
// for every request; domain matchers are looked up by host so a large set of
// domain rules costs one tree lookup. Safe for concurrent use.
type Index struct {
	cfg   Config
	paths []*Prepared
	hosts *radix.Tree
	count int
}

func NewIndex(rs []rules.Rule, cfg Config) *Index {
	idx := &Index{cfg: cfg, count: len(rs)}
	txn := radix.New().Txn()

	for _, p := range PrepareAll(rs, cfg) {
		if !p.Domain {
			idx.paths = append(idx.paths, p)
			continue
		}
		if p.Host == "" {
			continue
		}
		key := hostKey(p.Host)
		var group []*Prepared
		if existing, ok := txn.Get(key); ok {
			group = existing.([]*Prepared)
		}
		txn.Insert(key, append(group, p))
	}

	idx.hosts = txn.Commit()
	return idx
}

func (idx *Index) Config() Config {
	return idx.cfg
}

// Len is the number of rules the index was built from.
func (idx *Index) Len() int {
	return idx.count
}

// Hosts is the number of distinct hosts named by domain matchers.
func (idx *Index) Hosts() int {
	return idx.hosts.Len()
}

func (idx *Index) Find(rawURL string) (Result, bool) {
	req := parseRequest(rawURL, idx.cfg)
	best, ok := bestOf(req, idx.candidates(req.host), idx.cfg)
	if !ok {
		return Result{}, false
	}
	return best.result(req), true
}

func (idx *Index) FindAll(rawURL string) []Result {
	host := parseRequest(rawURL, idx.cfg).host
	return FindAll(rawURL, idx.candidates(host), idx.cfg)
}

func (idx *Index) candidates(host string) []*Prepared {
	if host == "" {
		return idx.paths
	}
	v, ok := idx.hosts.Get(hostKey(host))
	if !ok {
		return idx.paths
	}
	group := v.([]*Prepared)
	out := make([]*Prepared, 0, len(idx.paths)+len(group))
	out = append(out, idx.paths...)
	return append(out, group...)
}

// hostKey reverses the labels of a host ("a.example.com" becomes
// "com.example.a") so hosts sharing a parent domain share a tree prefix.
func hostKey(host string) []byte {
	parts := strings.Split(host, ".")
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return []byte(strings.Join(parts, "."))
}
