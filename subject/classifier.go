// Package subject cleans email subject lines and matches them against the
// known thread types and job names.
package subject

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Unknown is reported when no vocabulary entry scores above the threshold.
const Unknown = "Unknown"

// ErrThreshold is returned for a confidence threshold outside [0, 100].
var ErrThreshold = errors.New("confidence threshold must be between 0 and 100")

var replyPrefixRE = regexp.MustCompile(`^(RE|Re|FW|FWD|Fw|):?\s`)

// Vocabulary holds the names a subject may be classified as. Order matters:
// on equal scores the earlier entry wins.
type Vocabulary struct {
	ThreadTypes []string `json:"threadTypes"`
	JobNames    []string `json:"jobNames"`
}

// Result is the outcome of classifying one subject line.
type Result struct {
	Subject         string `json:"subject"`
	ThreadType      string `json:"threadType"`
	JobName         string `json:"jobName"`
	ThreadTypeScore int    `json:"threadTypeScore"`
	JobNameScore    int    `json:"jobNameScore"`
	MatchedToken    string `json:"matchedToken,omitempty"`
}

// Classifier matches subjects against a fixed snapshot of a Vocabulary.
// It is safe for concurrent use.
type Classifier struct {
	threadTypes []string
	jobNames    []string
	normJobs    []string
	threshold   float64
}

// NewClassifier copies vocab, so later changes to the caller's slices do not
// affect classification. A score must be strictly greater than threshold to
// count as a match.
func NewClassifier(vocab Vocabulary, threshold float64) (*Classifier, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("%w: got %v", ErrThreshold, threshold)
	}

	c := &Classifier{threshold: threshold}
	for _, tt := range vocab.ThreadTypes {
		if strings.TrimSpace(tt) != "" {
			c.threadTypes = append(c.threadTypes, tt)
		}
	}
	for _, job := range vocab.JobNames {
		if norm := normalizeJob(job); norm != "" {
			c.jobNames = append(c.jobNames, job)
			c.normJobs = append(c.normJobs, norm)
		}
	}
	return c, nil
}

// Threshold returns the configured confidence threshold.
func (c *Classifier) Threshold() float64 { return c.threshold }

// Vocabulary returns a copy of the classifier's snapshot.
func (c *Classifier) Vocabulary() Vocabulary {
	return Vocabulary{
		ThreadTypes: append([]string(nil), c.threadTypes...),
		JobNames:    append([]string(nil), c.jobNames...),
	}
}

// Clean strips one leading reply or forward prefix and trims the result.
func Clean(raw string) string {
	return strings.TrimSpace(replyPrefixRE.ReplaceAllString(raw, ""))
}

// Classify cleans raw and picks a thread type and a job name for it. Both
// are either vocabulary entries or Unknown.
func (c *Classifier) Classify(raw string) Result {
	cleaned := Clean(raw)
	res := Result{Subject: cleaned, ThreadType: Unknown, JobName: Unknown}

	tokens := strings.Fields(cleaned)
	threadType, tokenIdx, ttScore := c.matchThreadType(tokens)
	res.ThreadTypeScore = ttScore
	if tokenIdx >= 0 {
		res.MatchedToken = tokens[tokenIdx]
	}
	if threadType != "" && c.passes(ttScore) {
		res.ThreadType = threadType
	}

	// The matched thread type token is dropped before the job match,
	// whether or not the thread type itself passed.
	jobSubject := cleaned
	if tokenIdx >= 0 {
		jobSubject = withoutToken(tokens, tokenIdx)
	}
	if job, score := c.matchJobName(jobSubject); job != "" {
		res.JobNameScore = score
		if c.passes(score) {
			res.JobName = job
		}
	}
	return res
}

func (c *Classifier) passes(score int) bool {
	return float64(score) > c.threshold
}

// matchThreadType returns the thread type whose best token score is highest,
// the index of that token and the score. Index is -1 when nothing matched.
func (c *Classifier) matchThreadType(tokens []string) (string, int, int) {
	best, bestIdx, bestScore := "", -1, -1
	for _, tt := range c.threadTypes {
		query := strings.ToLower(strings.TrimSpace(tt))
		idx, score := -1, -1
		for i, tok := range tokens {
			if s := Ratio(query, strings.ToLower(strings.TrimSpace(tok))); s > score {
				idx, score = i, s
			}
		}
		if idx >= 0 && score > bestScore {
			best, bestIdx, bestScore = tt, idx, score
		}
	}
	if bestIdx < 0 {
		return "", -1, 0
	}
	return best, bestIdx, bestScore
}

// matchJobName finds the job closest to the whole subject, then checks
// whether the job appears as a prefix by scoring it against every
// truncation of the subject. The higher of the two scores is returned.
func (c *Classifier) matchJobName(subject string) (string, int) {
	if len(c.jobNames) == 0 {
		return "", 0
	}
	norm := normalizeJob(subject)

	bestIdx, whole := 0, -1
	for i, job := range c.normJobs {
		if s := Ratio(job, norm); s > whole {
			bestIdx, whole = i, s
		}
	}

	prefix := 0
	rs := []rune(norm)
	for n := len(rs) - 1; n >= 0; n-- {
		if s := Ratio(c.normJobs[bestIdx], string(rs[:n])); s > prefix {
			prefix = s
		}
	}
	return c.jobNames[bestIdx], max(whole, prefix)
}

func normalizeJob(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "")
}

func withoutToken(tokens []string, idx int) string {
	rest := make([]string, 0, len(tokens)-1)
	rest = append(rest, tokens[:idx]...)
	rest = append(rest, tokens[idx+1:]...)
	return strings.Join(rest, " ")
}
