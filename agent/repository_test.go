package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/epolicy/policy"
)

func names(l *RepositoryList) []string {
	var out []string
	for _, s := range l.Sites() {
		out = append(out, s.Name)
	}
	return out
}

func TestNewRepository_WrongType(t *testing.T) {
	_, err := NewRepository(load(t, generalBuilder()))
	assert.ErrorIs(t, err, policy.ErrWrongType)
}

func TestRepository_Sites(t *testing.T) {
	r := repositoryPolicy(t)

	l, err := r.Sites()
	require.NoError(t, err)
	assert.Equal(t, []Site{
		{"ePOSiteMgr_EPO-TEST", true},
		{"McAfeeHttp", true},
		{"McAfeeFtp", false},
	}, l.Sites())

	assert.Equal(t, ""+
		"| Order | Name                     | State    |\n"+
		"|------:|:-------------------------|:---------|\n"+
		"|     0 | ePOSiteMgr_EPO-TEST      | Enabled  |\n"+
		"|     1 | McAfeeHttp               | Enabled  |\n"+
		"|     2 | McAfeeFtp                | Disabled |",
		l.Markdown())
}

func TestRepository_SetSites(t *testing.T) {
	r := repositoryPolicy(t)
	l, err := r.Sites()
	require.NoError(t, err)

	require.NoError(t, l.Enable("McAfeeFtp"))
	require.NoError(t, l.Disable("McAfeeHttp"))
	require.NoError(t, l.MoveTop("McAfeeFtp"))
	require.NoError(t, r.SetSites(l))

	for name, want := range map[string]string{
		"bUseProxy":        "0",
		"SitelistOrderNum": "3",
		"SitelistOrder_0":  "McAfeeFtp",
		"SitelistOrder_2":  "McAfeeHttp",
		"DisabledSiteNum":  "1",
		"DisabledSites_0":  "McAfeeHttp",
	} {
		v, ok := r.Policy().Get("InetManager", name)
		assert.True(t, ok, name)
		assert.Equal(t, want, v, name)
	}

	again, err := r.Sites()
	require.NoError(t, err)
	assert.Equal(t, l.Sites(), again.Sites())
}

func TestRepository_SitesWithoutDisabledList(t *testing.T) {
	p := load(t, repositoryBuilder(
		"SitelistOrderNum", "2",
		"SitelistOrder_0", "A",
		"SitelistOrder_1", "B",
	))
	r, err := NewRepository(p)
	require.NoError(t, err)

	l, err := r.Sites()
	require.NoError(t, err)
	assert.Equal(t, []Site{{"A", true}, {"B", true}}, l.Sites())

	dup := load(t, repositoryBuilder(
		"SitelistOrderNum", "2",
		"SitelistOrder_0", "A",
		"SitelistOrder_1", "A",
	))
	r, err = NewRepository(dup)
	require.NoError(t, err)
	_, err = r.Sites()
	assert.ErrorIs(t, err, policy.ErrMalformed)
}

func TestRepositoryList_Edit(t *testing.T) {
	l := NewRepositoryList()
	require.NoError(t, l.Add("A", true))
	require.NoError(t, l.Add("B", false))
	assert.ErrorIs(t, l.Add("A", false), ErrDuplicate)
	assert.ErrorIs(t, l.Add("", true), ErrInvalid)

	assert.Equal(t, 1, l.Index("B"))
	assert.Equal(t, -1, l.Index("C"))
	assert.True(t, l.Contains("A"))

	on, err := l.Enabled("B")
	require.NoError(t, err)
	assert.False(t, on)
	_, err = l.Enabled("C")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, l.Enable("C"), ErrNotFound)

	require.NoError(t, l.Remove("A"))
	assert.ErrorIs(t, l.Remove("A"), ErrNotFound)
	assert.Equal(t, 1, l.Len())
}

func TestRepositoryList_Move(t *testing.T) {
	tests := []struct {
		name    string
		move    func(*RepositoryList) error
		want    []string
		wantErr error
	}{
		{"up", func(l *RepositoryList) error { return l.MoveUp("C") }, []string{"A", "C", "B", "D"}, nil},
		{"up at top", func(l *RepositoryList) error { return l.MoveUp("A") }, []string{"A", "B", "C", "D"}, nil},
		{"down", func(l *RepositoryList) error { return l.MoveDown("A") }, []string{"B", "A", "C", "D"}, nil},
		{"down at bottom", func(l *RepositoryList) error { return l.MoveDown("D") }, []string{"A", "B", "C", "D"}, nil},
		{"top", func(l *RepositoryList) error { return l.MoveTop("C") }, []string{"C", "A", "B", "D"}, nil},
		{"bottom", func(l *RepositoryList) error { return l.MoveBottom("A") }, []string{"B", "C", "D", "A"}, nil},
		{"at", func(l *RepositoryList) error { return l.MoveAt("A", 2) }, []string{"B", "C", "A", "D"}, nil},
		{"at end", func(l *RepositoryList) error { return l.MoveAt("B", 4) }, []string{"A", "C", "D", "B"}, nil},
		{"at out of range", func(l *RepositoryList) error { return l.MoveAt("B", 5) }, []string{"A", "B", "C", "D"}, ErrInvalid},
		{"unknown", func(l *RepositoryList) error { return l.MoveUp("Z") }, []string{"A", "B", "C", "D"}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewRepositoryList(Site{"A", true}, Site{"B", true}, Site{"C", false}, Site{"D", true})
			err := tt.move(l)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, names(l))
		})
	}
}
