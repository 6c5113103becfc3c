package taxonomy

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
)

//go:embed reasons.toml
var defaultReasons []byte

type reasonFile struct {
	Reasons []domain.ReasonNode `toml:"reason"`
}

// StaticProvider serves a reason tree held in memory.
type StaticProvider struct {
	level1   []domain.ReasonNode
	byParent map[string][]domain.ReasonNode
}

// NewStaticProvider builds a provider from nodes. Inactive nodes and nodes
// whose parent is missing, inactive or on the wrong level are dropped, so a
// served child always resolves to an active parent.
func NewStaticProvider(nodes []domain.ReasonNode) *StaticProvider {
	byID := make(map[string]domain.ReasonNode, len(nodes))
	for _, n := range nodes {
		if n.Active {
			byID[n.ID] = n
		}
	}

	p := &StaticProvider{byParent: make(map[string][]domain.ReasonNode)}
	for _, n := range nodes {
		if !n.Active {
			continue
		}
		if n.Level == 1 {
			p.level1 = append(p.level1, n)
			continue
		}
		if !reachable(byID, n) {
			continue
		}
		p.byParent[n.ParentID] = append(p.byParent[n.ParentID], n)
	}
	return p
}

// reachable walks n's ancestors up to level 1.
func reachable(byID map[string]domain.ReasonNode, n domain.ReasonNode) bool {
	for n.Level > 1 {
		parent, ok := byID[n.ParentID]
		if !ok || parent.Level != n.Level-1 {
			return false
		}
		n = parent
	}
	return n.Level == 1
}

// LoadStatic reads a TOML reason file. An empty path loads the bundled tree.
func LoadStatic(path string) (*StaticProvider, error) {
	data := defaultReasons
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read reason file: %w", err)
		}
		data = b
	}
	nodes, err := ParseReasons(data)
	if err != nil {
		return nil, err
	}
	return NewStaticProvider(nodes), nil
}

// ParseReasons decodes a TOML reason list.
func ParseReasons(data []byte) ([]domain.ReasonNode, error) {
	var f reasonFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("failed to decode reason file: %w", err)
	}
	for _, n := range f.Reasons {
		if n.ID == "" || n.Level < 1 || n.Level > 3 {
			return nil, fmt.Errorf("invalid reason node %q at level %d", n.ID, n.Level)
		}
		if n.Level > 1 && n.ParentID == "" {
			return nil, fmt.Errorf("reason %q at level %d has no parent", n.ID, n.Level)
		}
	}
	return f.Reasons, nil
}

// Nodes returns every served node, level 1 first.
func (p *StaticProvider) Nodes() []domain.ReasonNode {
	out := append([]domain.ReasonNode(nil), p.level1...)
	parents := make([]string, 0, len(p.byParent))
	for id := range p.byParent {
		parents = append(parents, id)
	}
	sort.Strings(parents)
	for _, id := range parents {
		out = append(out, p.byParent[id]...)
	}
	return out
}

func (p *StaticProvider) ListLevel1(ctx context.Context) ([]domain.ReasonNode, error) {
	return clone(p.level1), nil
}

func (p *StaticProvider) ListLevel2(ctx context.Context, level1ID string) ([]domain.ReasonNode, error) {
	return clone(p.children(level1ID, 2)), nil
}

func (p *StaticProvider) ListLevel3(ctx context.Context, level1ID, level2ID string) ([]domain.ReasonNode, error) {
	return clone(p.children(level2ID, 3)), nil
}

func (p *StaticProvider) children(parentID string, level int) []domain.ReasonNode {
	var out []domain.ReasonNode
	for _, n := range p.byParent[parentID] {
		if n.Level == level {
			out = append(out, n)
		}
	}
	return out
}

func clone(nodes []domain.ReasonNode) []domain.ReasonNode {
	out := make([]domain.ReasonNode, len(nodes))
	copy(out, nodes)
	return out
}
