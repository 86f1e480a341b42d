package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequireScopes(t *testing.T) {
	cases := []struct {
		name     string
		required []string
		granted  []string
		wantErr  []string
	}{
		{name: "no required scopes", required: nil, granted: nil},
		{name: "admin", required: []string{"backlog:issues:write"}, granted: []string{"admin"}},
		{name: "all present", required: []string{"backlog:issues:write", "backlog:wikis:write"}, granted: []string{"backlog:wikis:write", "backlog:issues:write"}},
		{name: "wildcard prefix", required: []string{"backlog:issues:write"}, granted: []string{"backlog:*"}},
		{name: "trims and dedupes", required: []string{" backlog:issues:write ", "backlog:issues:write"}, granted: []string{"  backlog:issues:write"}},
		{
			name:     "missing scope",
			required: []string{"backlog:issues:write"},
			granted:  []string{"backlog:issues:read"},
			wantErr:  []string{"missing required scope(s): backlog:issues:write", "granted: backlog:issues:read"},
		},
		{
			name:     "wildcard of another prefix",
			required: []string{"backlog:issues:write"},
			granted:  []string{"backlog:wikis:*"},
			wantErr:  []string{"backlog:issues:write"},
		},
		{
			name:     "bare star is not a wildcard",
			required: []string{"backlog:issues:write"},
			granted:  []string{"*"},
			wantErr:  []string{"granted: *"},
		},
		{
			name:     "nothing granted",
			required: []string{"backlog:issues:write"},
			wantErr:  []string{"granted: none"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := RequireScopes("add_issue", tc.required, tc.granted)
			if len(tc.wantErr) == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tc.wantErr {
				require.Contains(t, err.Error(), want)
			}
		})
	}
}
