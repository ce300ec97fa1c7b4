package domain

import "fmt"

// Kind is a named test-selection policy
type Kind string

const (
	KindProtection Kind = "protection"
	KindSanity     Kind = "sanity"
	KindRandom     Kind = "random"
	KindAll        Kind = "all"
)

// Kinds lists the accepted regression kinds in CLI order
var Kinds = []Kind{KindProtection, KindSanity, KindRandom, KindAll}

// ParseKind validates a kind name
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := kindPolicies[k]; !ok {
		return "", fmt.Errorf("invalid kind %q (choose from protection, sanity, random, all)", s)
	}
	return k, nil
}

// KindPolicy holds the fixed arguments a kind forwards to the plan and
// report tools
type KindPolicy struct {
	OrTags     []string
	ExtraFlags []string
	SubMetrics []string
}

var kindPolicies = map[Kind]KindPolicy{
	KindProtection: {
		OrTags: []string{"protection"},
	},
	KindSanity: {
		OrTags:     []string{"L0", "L1", "L2"},
		SubMetrics: []string{"passing_rate:L0", "passing_rate:L1", "passing_rate:L2"},
	},
	KindRandom: {
		OrTags:     []string{"L10", "L11"},
		ExtraFlags: []string{"-l_num", "4", "-r_num", "5"},
		SubMetrics: []string{"passing_rate:L10", "passing_rate:L11"},
	},
	KindAll: {
		ExtraFlags: []string{"-l_num", "5", "-r_num", "10"},
		SubMetrics: []string{
			"passing_rate:L0", "passing_rate:L1", "passing_rate:L2",
			"passing_rate:L10", "passing_rate:L11",
		},
	},
}

// Policy returns the policy for k. The returned slices are copies.
func (k Kind) Policy() (KindPolicy, bool) {
	p, ok := kindPolicies[k]
	if !ok {
		return KindPolicy{}, false
	}
	return KindPolicy{
		OrTags:     append([]string(nil), p.OrTags...),
		ExtraFlags: append([]string(nil), p.ExtraFlags...),
		SubMetrics: append([]string(nil), p.SubMetrics...),
	}, true
}

// PlanArgs returns the kind's tag selector followed by its sweep flags
func (p KindPolicy) PlanArgs() []string {
	var args []string
	if len(p.OrTags) > 0 {
		args = append(args, "-otag")
		args = append(args, p.OrTags...)
	}
	return append(args, p.ExtraFlags...)
}

// Status is a terminal status token printed to stdout. The spellings are
// matched literally by log scrapers and must not change.
type Status string

const (
	StatusTreeBuildFail        Status = "TREE_BUILD_FAIL"
	StatusPass                 Status = "REGRESSION_PASS"
	StatusFail                 Status = "REGRESSION_FAIL"
	StatusCannotRunDiagnose    Status = "REGRESSION_FAIL_CANNOT_RUN_DIAGNOSE"
	StatusCannotGenerateMetric Status = "REGRESSION_FAIL_CANNOT_GENERATE_METRICS"
	StatusUnknownReason        Status = "REGRESSION_FAIL_UNKOWN_REASON"
	StatusComplete             Status = "REGRESSION_COMPLETE"
	StatusUnknownProject       Status = "REGRESSION_FAIL_UNKOWN_PROJECT"
)

// Failed reports whether s ends an orchestration unsuccessfully
func (s Status) Failed() bool {
	return s != StatusComplete && s != StatusPass
}

// Step names one external invocation of an orchestration
type Step string

const (
	StepBuild    Step = "build"
	StepPlan     Step = "plan"
	StepReport   Step = "report"
	StepDiagnose Step = "diagnose"
	StepMetrics  Step = "metrics"
	StepKill     Step = "kill"
)
