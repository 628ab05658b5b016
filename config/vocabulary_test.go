package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vocabulary.json")

	m, err := NewManager(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err)
	assert.Empty(t, m.Vocabulary().ThreadTypes)
	assert.Empty(t, m.Vocabulary().JobNames)
}

func TestManagerPersistsChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocabulary.json")
	m, err := NewManager(path)
	require.NoError(t, err)

	require.NoError(t, m.AddThreadType("RFI"))
	require.NoError(t, m.AddThreadType("Submittal"))
	require.NoError(t, m.AddThreadType("RFI"))
	require.NoError(t, m.AddThreadType("   "))
	require.NoError(t, m.AddJobName("TestJob"))
	require.NoError(t, m.AddJobName("Site B"))
	require.NoError(t, m.RemoveJobName("TestJob"))
	require.NoError(t, m.RemoveJobName("never added"))
	require.NoError(t, m.AddIgnoreSender("noreply@"))
	require.NoError(t, m.AddIgnoreKeywordInSubject("newsletter"))

	reloaded, err := NewManager(path)
	require.NoError(t, err)

	v := reloaded.Vocabulary()
	assert.Equal(t, []string{"RFI", "Submittal"}, v.ThreadTypes)
	assert.Equal(t, []string{"Site B"}, v.JobNames)

	f := reloaded.Filters()
	assert.Equal(t, []string{"noreply@"}, f.IgnoreSenders)
	assert.Equal(t, []string{"newsletter"}, f.IgnoreKeywordsInSubject)

	require.NoError(t, reloaded.RemoveThreadType("RFI"))
	assert.Equal(t, []string{"Submittal"}, reloaded.Vocabulary().ThreadTypes)
}

func TestManagerReturnsCopies(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "vocabulary.json"))
	require.NoError(t, err)
	require.NoError(t, m.AddJobName("TestJob"))

	v := m.Vocabulary()
	v.JobNames[0] = "changed"
	assert.Equal(t, []string{"TestJob"}, m.Vocabulary().JobNames)
}

func TestManagerRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocabulary.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewManager(path)
	assert.ErrorContains(t, err, "parse vocabulary")
}

func TestFiltersSkip(t *testing.T) {
	f := Filters{
		IgnoreSenders:           []string{"NoReply@", ""},
		IgnoreKeywordsInSubject: []string{"Newsletter"},
	}

	tests := []struct {
		sender, subject string
		skip            bool
		rule            string
	}{
		{"noreply@vendor.com", "RFI TestJob", true, "sender:NoReply@"},
		{"jane@example.com", "Weekly NEWSLETTER", true, "subject:Newsletter"},
		{"jane@example.com", "RFI TestJob", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.sender+"/"+tt.subject, func(t *testing.T) {
			skip, rule := f.Skip(tt.sender, tt.subject)
			assert.Equal(t, tt.skip, skip)
			assert.Equal(t, tt.rule, rule)
		})
	}
}
