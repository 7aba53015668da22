package agent

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"grimm.is/epolicy/internal/validation"
	"grimm.is/epolicy/policy"
)

const inetManager = "InetManager"

// Site is a repository in update order.
type Site struct {
	Name    string
	Enabled bool
}

// RepositoryList is the ordered repository site list. Names are unique.
type RepositoryList struct {
	sites []Site
}

// NewRepositoryList returns a list holding sites in order.
func NewRepositoryList(sites ...Site) *RepositoryList {
	return &RepositoryList{sites: append([]Site(nil), sites...)}
}

func (l *RepositoryList) Sites() []Site { return append([]Site(nil), l.sites...) }
func (l *RepositoryList) Len() int      { return len(l.sites) }

// Index returns the position of name, or -1.
func (l *RepositoryList) Index(name string) int {
	return slices.IndexFunc(l.sites, func(s Site) bool { return s.Name == name })
}

func (l *RepositoryList) Contains(name string) bool { return l.Index(name) >= 0 }

func (l *RepositoryList) find(name string) (int, error) {
	i := l.Index(name)
	if i < 0 {
		return -1, fmt.Errorf("%w: repository %q", ErrNotFound, name)
	}
	return i, nil
}

// Add appends a site.
func (l *RepositoryList) Add(name string, enabled bool) error {
	if err := validation.Var("repository name", name, "required"); err != nil {
		return err
	}
	if l.Contains(name) {
		return fmt.Errorf("%w: repository %q", ErrDuplicate, name)
	}
	l.sites = append(l.sites, Site{Name: name, Enabled: enabled})
	return nil
}

func (l *RepositoryList) Remove(name string) error {
	i, err := l.find(name)
	if err != nil {
		return err
	}
	l.sites = slices.Delete(l.sites, i, i+1)
	return nil
}

func (l *RepositoryList) Enabled(name string) (bool, error) {
	i, err := l.find(name)
	if err != nil {
		return false, err
	}
	return l.sites[i].Enabled, nil
}

func (l *RepositoryList) Enable(name string) error  { return l.setEnabled(name, true) }
func (l *RepositoryList) Disable(name string) error { return l.setEnabled(name, false) }

func (l *RepositoryList) setEnabled(name string, enabled bool) error {
	i, err := l.find(name)
	if err != nil {
		return err
	}
	l.sites[i].Enabled = enabled
	return nil
}

// MoveAt moves name to position to, counted after name is taken out.
// Positions past the end move it last.
func (l *RepositoryList) MoveAt(name string, to int) error {
	i, err := l.find(name)
	if err != nil {
		return err
	}
	if err := validation.Range("repository position", to, 0, len(l.sites)); err != nil {
		return err
	}
	s := l.sites[i]
	l.sites = slices.Delete(l.sites, i, i+1)
	l.sites = slices.Insert(l.sites, min(to, len(l.sites)), s)
	return nil
}

// MoveUp swaps name with the site before it. The first site stays.
func (l *RepositoryList) MoveUp(name string) error {
	i, err := l.find(name)
	if err != nil {
		return err
	}
	if i > 0 {
		l.sites[i-1], l.sites[i] = l.sites[i], l.sites[i-1]
	}
	return nil
}

// MoveDown swaps name with the site after it. The last site stays.
func (l *RepositoryList) MoveDown(name string) error {
	i, err := l.find(name)
	if err != nil {
		return err
	}
	if i < len(l.sites)-1 {
		l.sites[i+1], l.sites[i] = l.sites[i], l.sites[i+1]
	}
	return nil
}

func (l *RepositoryList) MoveTop(name string) error    { return l.MoveAt(name, 0) }
func (l *RepositoryList) MoveBottom(name string) error { return l.MoveAt(name, len(l.sites)) }

func (l *RepositoryList) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "| %-5s | %-25s| %-9s|\n", "Order", "Name", "State")
	b.WriteString("|------:|:-------------------------|:---------|")
	for i, s := range l.sites {
		state := "Disabled"
		if s.Enabled {
			state = "Enabled"
		}
		fmt.Fprintf(&b, "\n| %5d | %-25s| %-9s|", i, s.Name, state)
	}
	return b.String()
}

// Repository edits a McAfee Agent Repository policy.
type Repository struct {
	p *policy.Policy
}

// NewRepository wraps p, which must be a McAfee Agent Repository policy.
func NewRepository(p *policy.Policy) (*Repository, error) {
	if err := p.Require(policy.ProductAgent, policy.TypeAgentRepository); err != nil {
		return nil, err
	}
	return &Repository{p: p}, nil
}

func (r *Repository) Policy() *policy.Policy { return r.p }

// Sites reads the site order and the disabled sites. A policy without
// DisabledSiteNum has every site enabled.
func (r *Repository) Sites() (*RepositoryList, error) {
	order, err := r.p.List(inetManager, "SitelistOrderNum", "SitelistOrder_", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read repository order: %w", err)
	}
	disabled, err := r.p.List(inetManager, "DisabledSiteNum", "DisabledSites_", 0)
	if errors.Is(err, policy.ErrSettingNotFound) {
		disabled, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read disabled repositories: %w", err)
	}

	l := NewRepositoryList()
	for _, name := range order {
		if err := l.Add(name, !slices.Contains(disabled, name)); err != nil {
			return nil, fmt.Errorf("%w: %v", policy.ErrMalformed, err)
		}
	}
	return l, nil
}

// SetSites writes l as the site order and disabled list. Other InetManager
// settings are kept.
func (r *Repository) SetSites(l *RepositoryList) error {
	var order, disabled []string
	for _, s := range l.sites {
		order = append(order, s.Name)
		if !s.Enabled {
			disabled = append(disabled, s.Name)
		}
	}
	if err := r.p.SetList(inetManager, "DisabledSiteNum", "DisabledSites_", 0, disabled); err != nil {
		return err
	}
	return r.p.SetList(inetManager, "SitelistOrderNum", "SitelistOrder_", 0, order)
}
