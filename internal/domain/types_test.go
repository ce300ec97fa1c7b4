package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestKindPolicy_PlanArgs(t *testing.T) {
	tests := []struct {
		kind Kind
		want []string
	}{
		{KindProtection, []string{"-otag", "protection"}},
		{KindSanity, []string{"-otag", "L0", "L1", "L2"}},
		{KindRandom, []string{"-otag", "L10", "L11", "-l_num", "4", "-r_num", "5"}},
		{KindAll, []string{"-l_num", "5", "-r_num", "10"}},
	}

	for _, tt := range tests {
		p, ok := tt.kind.Policy()
		if !ok {
			t.Fatalf("Policy(%q) not found", tt.kind)
		}
		if diff := cmp.Diff(tt.want, p.PlanArgs()); diff != "" {
			t.Errorf("%s plan args mismatch (-want +got):\n%s", tt.kind, diff)
		}
	}
}

func TestKindPolicy_SubMetrics(t *testing.T) {
	tests := []struct {
		kind Kind
		want []string
	}{
		{KindProtection, nil},
		{KindSanity, []string{"passing_rate:L0", "passing_rate:L1", "passing_rate:L2"}},
		{KindRandom, []string{"passing_rate:L10", "passing_rate:L11"}},
		{KindAll, []string{"passing_rate:L0", "passing_rate:L1", "passing_rate:L2", "passing_rate:L10", "passing_rate:L11"}},
	}

	for _, tt := range tests {
		p, _ := tt.kind.Policy()
		if diff := cmp.Diff(tt.want, p.SubMetrics); diff != "" {
			t.Errorf("%s sub metrics mismatch (-want +got):\n%s", tt.kind, diff)
		}
	}
}

func TestKind_PolicyReturnsCopy(t *testing.T) {
	p, _ := KindSanity.Policy()
	p.OrTags[0] = "mutated"

	again, _ := KindSanity.Policy()
	if again.OrTags[0] != "L0" {
		t.Errorf("OrTags[0] = %q after mutation, want L0", again.OrTags[0])
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		if err != nil {
			t.Errorf("ParseKind(%q) error: %v", k, err)
		}
		if got != k {
			t.Errorf("ParseKind(%q) = %q", k, got)
		}
	}

	if _, err := ParseKind("nightly"); err == nil {
		t.Error("ParseKind(nightly) should fail")
	}
}

func TestStatus_Failed(t *testing.T) {
	if StatusComplete.Failed() {
		t.Error("REGRESSION_COMPLETE should not be a failure")
	}
	if !StatusCannotRunDiagnose.Failed() {
		t.Error("REGRESSION_FAIL_CANNOT_RUN_DIAGNOSE should be a failure")
	}
}
