package subject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testVocab = Vocabulary{
	ThreadTypes: []string{"RFI", "Submittal"},
	JobNames:    []string{"TestJob", "Site B"},
}

func newTestClassifier(t *testing.T, threshold float64) *Classifier {
	t.Helper()
	c, err := NewClassifier(testVocab, threshold)
	require.NoError(t, err)
	return c
}

func TestClassify(t *testing.T) {
	c := newTestClassifier(t, 50)

	tests := []struct {
		name       string
		subject    string
		cleaned    string
		threadType string
		jobName    string
	}{
		{
			name:       "reply to rfi",
			subject:    "RE: RFI TestJob Urgent Electrical Question",
			cleaned:    "RFI TestJob Urgent Electrical Question",
			threadType: "RFI",
			jobName:    "TestJob",
		},
		{
			name:       "unrelated",
			subject:    "Random unrelated text",
			cleaned:    "Random unrelated text",
			threadType: Unknown,
			jobName:    Unknown,
		},
		{
			name:       "job name with space matched as prefix",
			subject:    "FW: Submittal SiteB Foundation Drawings",
			cleaned:    "Submittal SiteB Foundation Drawings",
			threadType: "Submittal",
			jobName:    "Site B",
		},
		{
			name:       "case insensitive",
			subject:    "rfi testjob",
			cleaned:    "rfi testjob",
			threadType: "RFI",
			jobName:    "TestJob",
		},
		{
			name:       "empty",
			subject:    "",
			cleaned:    "",
			threadType: Unknown,
			jobName:    Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Classify(tt.subject)
			assert.Equal(t, tt.cleaned, res.Subject)
			assert.Equal(t, tt.threadType, res.ThreadType)
			assert.Equal(t, tt.jobName, res.JobName)
		})
	}
}

func TestClassifyReportsMatchedToken(t *testing.T) {
	res := newTestClassifier(t, 50).Classify("RE: RFI TestJob Urgent Electrical Question")
	assert.Equal(t, "RFI", res.MatchedToken)
	assert.Equal(t, 100, res.ThreadTypeScore)
	assert.Equal(t, 100, res.JobNameScore)
}

func TestClassifyDropsThreadTypeTokenBeforeJobMatch(t *testing.T) {
	c, err := NewClassifier(Vocabulary{
		ThreadTypes: []string{"RFI"},
		JobNames:    []string{"RFI Tower"},
	}, 90)
	require.NoError(t, err)

	res := c.Classify("RFI Tower")
	assert.Equal(t, "RFI", res.ThreadType)
	assert.Equal(t, "RFI", res.MatchedToken)
	// only "Tower" is left to score against "rfitower"
	assert.Equal(t, 77, res.JobNameScore)
	assert.Equal(t, Unknown, res.JobName)
}

func TestClassifyStaysInVocabulary(t *testing.T) {
	c := newTestClassifier(t, 30)
	subjects := []string{
		"", " ", "RE:", "RE: ", "x", "Submital for site b", "RFI RFI RFI",
		"Fwd: unrelated", "ÜnÎcödé subject ✓", "TestJobTestJobTestJob", "-- ",
	}

	allowedTypes := append([]string{Unknown}, testVocab.ThreadTypes...)
	allowedJobs := append([]string{Unknown}, testVocab.JobNames...)
	for _, s := range subjects {
		res := c.Classify(s)
		assert.Contains(t, allowedTypes, res.ThreadType, "subject %q", s)
		assert.Contains(t, allowedJobs, res.JobName, "subject %q", s)
	}
}

func TestClassifyMonotoneInThreshold(t *testing.T) {
	subjects := []string{
		"RE: RFI TestJob Urgent Electrical Question",
		"Submital for site",
		"Random unrelated text",
		"Test job question",
		"rf",
	}

	for _, s := range subjects {
		var prev Result
		for threshold := 100.0; threshold >= 0; threshold -= 5 {
			res := newTestClassifier(t, threshold).Classify(s)
			if threshold < 100 {
				if prev.ThreadType != Unknown {
					assert.Equal(t, prev.ThreadType, res.ThreadType, "subject %q threshold %v", s, threshold)
				}
				if prev.JobName != Unknown {
					assert.Equal(t, prev.JobName, res.JobName, "subject %q threshold %v", s, threshold)
				}
			}
			prev = res
		}
	}
}

func TestNewClassifierSnapshotsVocabulary(t *testing.T) {
	vocab := Vocabulary{
		ThreadTypes: []string{"RFI"},
		JobNames:    []string{"TestJob", "  "},
	}
	c, err := NewClassifier(vocab, 50)
	require.NoError(t, err)

	vocab.ThreadTypes[0] = "Changed"
	vocab.JobNames[0] = "Changed"

	assert.Equal(t, Vocabulary{ThreadTypes: []string{"RFI"}, JobNames: []string{"TestJob"}}, c.Vocabulary())
	assert.Equal(t, "RFI", c.Classify("RFI TestJob").ThreadType)
}

func TestNewClassifierRejectsBadThreshold(t *testing.T) {
	for _, threshold := range []float64{-1, 100.5, 1000} {
		_, err := NewClassifier(testVocab, threshold)
		assert.ErrorIs(t, err, ErrThreshold)
	}
}

func TestClassifyEmptyVocabulary(t *testing.T) {
	c, err := NewClassifier(Vocabulary{}, 0)
	require.NoError(t, err)

	res := c.Classify("RFI TestJob")
	assert.Equal(t, Unknown, res.ThreadType)
	assert.Equal(t, Unknown, res.JobName)
}

func TestClean(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"RE: Hello", "Hello"},
		{"Re: Hello", "Hello"},
		{"FWD: Drawings", "Drawings"},
		{"Fw: Drawings", "Drawings"},
		{"FW Drawings", "Drawings"},
		{"RE: RE: nested", "RE: nested"},
		{"  padded  ", "padded"},
		{"Reply needed", "Reply needed"},
		{"Fwd: untouched", "Fwd: untouched"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 100, Ratio("testjob", "testjob"))
	assert.Equal(t, 0, Ratio("", "testjob"))
	assert.Equal(t, 0, Ratio("testjob", ""))
	assert.Equal(t, 0, Ratio("abc", "xyz"))
	assert.Equal(t, 75, Ratio("abcd", "abce"))
	assert.Equal(t, 100, Ratio("über", "über"))
}
